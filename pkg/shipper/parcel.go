package shipper

import (
	"math"
	"regexp"
	"strings"
)

// Weights in pounds.
const (
	packagingAllowance = 0.2
	minimumWeight      = 0.1
	defaultItemWeight  = 0.5
)

var zipPattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// ValidZIP reports whether zip is a 5-digit or ZIP+4 code.
func ValidZIP(zip string) bool {
	return zipPattern.MatchString(zip)
}

// itemWeights is matched in order against the lowercased product name.
var itemWeights = []struct {
	keywords []string
	pounds   float64
}{
	{[]string{"donut", "doughnut"}, 0.15},
	{[]string{"drink", "coffee", "latte"}, 0.5},
	{[]string{"t-shirt", "tshirt"}, 0.3},
	{[]string{"hoodie"}, 1.0},
	{[]string{"mug"}, 1.2},
	{[]string{"tumbler"}, 0.8},
	{[]string{"cap", "hat"}, 0.2},
}

func itemWeight(productName string) float64 {
	name := strings.ToLower(productName)
	for _, w := range itemWeights {
		for _, kw := range w.keywords {
			if strings.Contains(name, kw) {
				return w.pounds
			}
		}
	}
	return defaultItemWeight
}

// CalculateWeight estimates the parcel weight in pounds from product names, including packaging.
func CalculateWeight(items []Item) float64 {
	total := 0.0
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		total += itemWeight(item.ProductName) * float64(item.Quantity)
	}
	total += packagingAllowance
	// Round away float noise from summing decimal fractions.
	total = math.Round(total*1000) / 1000
	return math.Max(total, minimumWeight)
}

var packagingDimensions = map[string]Dimensions{
	PackagingEnvelope:       {Length: 12, Width: 9, Height: 1},
	PackagingBubbleEnvelope: {Length: 12.5, Width: 9.5, Height: 1.5},
	PackagingTShirtEnvelope: {Length: 11, Width: 15, Height: 1},
	PackagingSmallBox:       {Length: 8, Width: 6, Height: 4},
	PackagingMediumBox:      {Length: 11, Width: 8, Height: 5},
	PackagingLargeBox:       {Length: 12, Width: 12, Height: 6},
	PackagingFoodSmallBox:   {Length: 10, Width: 8, Height: 4},
	PackagingFoodMediumBox:  {Length: 12, Width: 10, Height: 5},
	PackagingFoodLargeBox:   {Length: 14, Width: 12, Height: 6},
	PackagingInsulatedBox:   {Length: 14, Width: 12, Height: 7},
}

var standardBands = [3]Dimensions{
	{Length: 10, Width: 8, Height: 4},
	{Length: 12, Width: 10, Height: 5},
	{Length: 14, Width: 12, Height: 6},
}

// CalculateDimensions returns parcel dimensions in inches for a packaging code. Unknown codes
// and the standard box are sized by item count in three bands; food fits more items per band.
func CalculateDimensions(items []Item, packaging string) Dimensions {
	if d, ok := packagingDimensions[packaging]; ok {
		return d
	}

	count := 0
	food := false
	for _, item := range items {
		count += item.Quantity
		if isFood(item.ProductName) {
			food = true
		}
	}

	small, medium := 2, 5
	if food {
		small, medium = 3, 6
	}

	switch {
	case count <= small:
		return standardBands[0]
	case count <= medium:
		return standardBands[1]
	default:
		return standardBands[2]
	}
}

func isFood(productName string) bool {
	name := strings.ToLower(productName)
	return strings.Contains(name, "donut") || strings.Contains(name, "doughnut") || strings.Contains(name, "drink")
}
