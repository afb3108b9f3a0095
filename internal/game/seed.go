package game

// Built-in content used when no database is configured. The store replaces
// these with catalog rows at startup when a DSN is set.

var seedCounties = []string{
	"Cork", "Galway", "Mayo", "Donegal", "Kerry",
	"Tipperary", "Clare", "Tyrone", "Antrim", "Limerick",
	"Roscommon", "Down", "Wexford", "Meath", "Derry",
	"Kilkenny", "Wicklow", "Offaly", "Cavan", "Waterford",
	"Westmeath", "Sligo", "Laois", "Kildare", "Fermanagh",
	"Leitrim", "Armagh", "Monaghan", "Longford", "Dublin",
	"Carlow", "Louth",
}

var seedQuestions = []VoteQuestion{
	{Text: "Will the next coin flip land heads?", Choices: [2]string{"Heads", "Tails"}},
	{Text: "Does pineapple belong on pizza?", Choices: [2]string{"Yes", "No"}},
	{Text: "Will it rain tomorrow?", Choices: [2]string{"Rain", "Dry"}},
	{Text: "Cats or dogs?", Choices: [2]string{"Cats", "Dogs"}},
}

var seedPriceItems = []PriceItem{
	{Name: "Stainless steel kettle", PriceCents: 3499},
	{Name: "Bluetooth speaker", PriceCents: 5999},
	{Name: "Cast iron skillet", PriceCents: 4250},
	{Name: "Electric toothbrush", PriceCents: 7999},
	{Name: "Desk lamp", PriceCents: 2799},
}

// SeedContent exposes the built-in material so a fresh database can be
// provisioned with it.
func SeedContent() Content {
	return Content{
		Counties:   append([]string(nil), seedCounties...),
		PriceItems: append([]PriceItem(nil), seedPriceItems...),
		Questions:  append([]VoteQuestion(nil), seedQuestions...),
	}
}
