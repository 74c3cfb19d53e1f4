// Package client assembles the sync core: transport, cache engine, persisted
// state, connectivity and alerts behind one Client.
//
// A Client is created from a config.Config. New restores the persisted
// snapshot, including the session token, before it returns. Run drives the
// background work (autosave and connectivity probing) until its context ends.
//
//	cfg, err := config.Load()
//	c, err := client.New(ctx, cfg, client.WithPresenter(ui))
//	go c.Run(ctx)
//	defer c.Close(context.Background())
//
//	sub, err := c.Engine().Subscribe(c.API().Customers(sales.CustomerFilter{}), cache.SubscribeOptions{})
package client
