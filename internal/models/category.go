package models

const (
	ListingGoods    = "goods"
	ListingServices = "services"
)

type Category struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Categories is the fixed catalogue listings are filed under.
var Categories = []Category{
	{"Electronics", ListingGoods},
	{"Furniture", ListingGoods},
	{"Clothing", ListingGoods},
	{"Vehicles", ListingGoods},
	{"Books", ListingGoods},
	{"Sports & Outdoors", ListingGoods},
	{"Home & Garden", ListingGoods},
	{"Toys & Games", ListingGoods},
	{"Other Goods", ListingGoods},
	{"Tutoring", ListingServices},
	{"Cleaning", ListingServices},
	{"Repair", ListingServices},
	{"Delivery", ListingServices},
	{"Event Planning", ListingServices},
	{"Photography", ListingServices},
	{"Other Services", ListingServices},
}

// LookupCategory returns the catalogue entry with the given name.
func LookupCategory(name string) (Category, bool) {
	for _, c := range Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}
