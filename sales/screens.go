package sales

import (
	"time"

	"github.com/jonwraymond/salesync/aggregate"
)

// CustomerListSpec is the default view of the customer list.
func CustomerListSpec() aggregate.Spec {
	return aggregate.Spec{
		SortBy:       "name",
		OrderBy:      aggregate.Asc,
		SearchFields: []string{"firstName", "lastName", "email", "phone", "city"},
	}
}

// CustomerSections groups customers by the first letter of their last name.
func CustomerSections() func(Customer) string {
	return aggregate.FirstLetter[Customer]("lastName")
}

// ContractListSpec is the default view of the contract list.
func ContractListSpec() aggregate.Spec {
	return aggregate.Spec{SortBy: "signedAt", OrderBy: aggregate.Desc}
}

// ContractSections groups contracts by status.
func ContractSections() func(Contract) string {
	return func(c Contract) string { return c.Status }
}

// TestDriveListSpec is the default view of the test drive agenda.
func TestDriveListSpec() aggregate.Spec {
	return aggregate.Spec{SortBy: "scheduledAt", OrderBy: aggregate.Asc}
}

// TestDriveSections groups test drives by day in loc.
func TestDriveSections(loc *time.Location) func(TestDrive) string {
	return aggregate.Day[TestDrive]("scheduledAt", loc)
}

// DeliveryListSpec is the default view of the delivery list.
func DeliveryListSpec() aggregate.Spec {
	return aggregate.Spec{SortBy: "deliveryDate", OrderBy: aggregate.Asc}
}

// DeliverySections groups deliveries by day in loc; undated ones come last
// under an empty title.
func DeliverySections(loc *time.Location) func(Delivery) string {
	return aggregate.Day[Delivery]("deliveryDate", loc)
}
