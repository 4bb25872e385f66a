package models

// Expense categories are a closed set: numeric code on the wire and in the
// database, human label in exports. Validation is a membership check.
var categoryLabels = map[int]string{
	1:  "Advertising",
	2:  "Meals & Entertainment",
	3:  "Memberships & Subscriptions",
	4:  "Office Supplies",
	5:  "Postage & Shipping",
	6:  "Accommodation",
	7:  "Training & Conferences",
	8:  "Travel",
	9:  "Telecommunications",
	10: "Other",
}

// ValidCategory reports whether code is one of the known expense categories.
func ValidCategory(code int) bool {
	_, ok := categoryLabels[code]
	return ok
}

// CategoryLabel returns the display label for a category code, or "Unknown"
// for codes outside the closed set.
func CategoryLabel(code int) string {
	if label, ok := categoryLabels[code]; ok {
		return label
	}
	return "Unknown"
}
