package health_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/salesync/health"
)

func ExampleAggregator() {
	agg := health.NewAggregator(health.AggregatorConfig{})
	_ = agg.Register(health.NewCheckerFunc("api", func(context.Context) health.Result {
		return health.Degraded("server returned 503", errors.New("unavailable"))
	}))
	_ = agg.Register(health.NewCheckerFunc("snapshot", func(context.Context) health.Result {
		return health.Healthy("ok")
	}))

	status := health.Overall(agg.CheckAll(context.Background()))
	fmt.Println(status, status.Reachable())
	// Output:
	// degraded true
}
