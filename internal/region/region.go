// Package region maps US postal codes to the state code the MMN API expects.
package region

import "fmt"

// DefaultRegion is returned for empty, short, or unassigned postal prefixes.
const DefaultRegion = "IA"

// prefixLen is the number of leading ZIP characters that identify a region.
const prefixLen = 3

// prefixRange covers a contiguous block of three-digit ZIP prefixes assigned
// to one region. The table below follows the USPS ZIP3 allocation, including
// the PR/VI/GU territories and the AA/AE/AP military prefixes. Unassigned
// blocks are simply absent and fall through to DefaultRegion.
type prefixRange struct {
	lo, hi int
	region string
}

var prefixRanges = []prefixRange{
	{5, 5, "NY"},
	{6, 7, "PR"},
	{8, 8, "VI"},
	{9, 9, "PR"},
	{10, 27, "MA"},
	{28, 29, "RI"},
	{30, 38, "NH"},
	{39, 49, "ME"},
	{50, 59, "VT"},
	{60, 69, "CT"},
	{70, 89, "NJ"},
	{90, 98, "AE"},
	{100, 149, "NY"},
	{150, 196, "PA"},
	{197, 199, "DE"},
	{200, 200, "DC"},
	{201, 201, "VA"},
	{202, 205, "DC"},
	{206, 212, "MD"},
	{214, 219, "MD"},
	{220, 246, "VA"},
	{247, 268, "WV"},
	{270, 289, "NC"},
	{290, 299, "SC"},
	{300, 319, "GA"},
	{320, 339, "FL"},
	{340, 340, "AA"},
	{341, 342, "FL"},
	{344, 344, "FL"},
	{346, 347, "FL"},
	{349, 349, "FL"},
	{350, 369, "AL"},
	{370, 385, "TN"},
	{386, 397, "MS"},
	{398, 399, "GA"},
	{400, 427, "KY"},
	{430, 459, "OH"},
	{460, 479, "IN"},
	{480, 499, "MI"},
	{500, 528, "IA"},
	{530, 549, "WI"},
	{550, 567, "MN"},
	{570, 577, "SD"},
	{580, 588, "ND"},
	{590, 599, "MT"},
	{600, 629, "IL"},
	{630, 658, "MO"},
	{660, 679, "KS"},
	{680, 693, "NE"},
	{700, 714, "LA"},
	{716, 729, "AR"},
	{730, 732, "OK"},
	{733, 733, "TX"},
	{734, 749, "OK"},
	{750, 799, "TX"},
	{800, 816, "CO"},
	{820, 831, "WY"},
	{832, 838, "ID"},
	{840, 847, "UT"},
	{850, 865, "AZ"},
	{870, 884, "NM"},
	{885, 885, "TX"},
	{889, 898, "NV"},
	{900, 961, "CA"},
	{962, 966, "AP"},
	{967, 968, "HI"},
	{969, 969, "GU"},
	{970, 979, "OR"},
	{980, 994, "WA"},
	{995, 999, "AK"},
}

// prefixRegions is the flattened prefix-to-region lookup table.
var prefixRegions = buildPrefixTable()

func buildPrefixTable() map[string]string {
	table := make(map[string]string, 1000)
	for _, r := range prefixRanges {
		for p := r.lo; p <= r.hi; p++ {
			table[fmt.Sprintf("%03d", p)] = r.region
		}
	}
	return table
}

// Resolve returns the region code for a postal code. It is total: postal
// codes shorter than three characters, or with an unassigned leading prefix,
// resolve to DefaultRegion.
func Resolve(postalCode string) string {
	if len(postalCode) < prefixLen {
		return DefaultRegion
	}
	if region, ok := prefixRegions[postalCode[:prefixLen]]; ok {
		return region
	}
	return DefaultRegion
}
