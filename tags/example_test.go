package tags_test

import (
	"fmt"

	"github.com/jonwraymond/salesync/tags"
)

func ExampleIndex_KeysForTags() {
	idx := tags.NewIndex()
	_ = idx.SetProvidedTags("customers", []tags.Tag{tags.List("Customer"), tags.Of("Customer", "42")})
	_ = idx.SetProvidedTags("customer/42", []tags.Tag{tags.Of("Customer", "42")})

	// A newly created customer has no id yet, so its mutation invalidates the list.
	fmt.Println(idx.KeysForTags(tags.List("Customer")))
	fmt.Println(idx.KeysForTags(tags.Of("Customer", "42")))
	fmt.Println(idx.KeysForTags(tags.Of("Customer", "7")))
	// Output:
	// [customer/42 customers]
	// [customer/42 customers]
	// []
}
