package game

import "strings"

// Attribute is one of the five trainable player stats.
type Attribute string

const (
	STR Attribute = "STR"
	INT Attribute = "INT"
	VIT Attribute = "VIT"
	WIS Attribute = "WIS"
	CHA Attribute = "CHA"

	// ALL is only valid as a buff target.
	ALL Attribute = "ALL"
)

// Attributes lists the trainable attributes in display order.
var Attributes = []Attribute{STR, INT, VIT, WIS, CHA}

// ParseAttribute accepts upper or lower case names. ALL is rejected.
func ParseAttribute(s string) (Attribute, bool) {
	a := Attribute(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Attributes {
		if a == known {
			return a, true
		}
	}
	return "", false
}

// Tier is a difficulty rank, F lowest and S highest.
type Tier string

const (
	TierF Tier = "F"
	TierE Tier = "E"
	TierD Tier = "D"
	TierC Tier = "C"
	TierB Tier = "B"
	TierA Tier = "A"
	TierS Tier = "S"
)

// Tiers in ascending order.
var Tiers = []Tier{TierF, TierE, TierD, TierC, TierB, TierA, TierS}

func ParseTier(s string) (Tier, bool) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Tiers {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// Rank returns the position of t in Tiers, or -1.
func (t Tier) Rank() int {
	for i, known := range Tiers {
		if t == known {
			return i
		}
	}
	return -1
}

// Stats holds one integer per attribute. It is a value type so that
// players can be copied without sharing state.
type Stats struct {
	STR int `json:"str"`
	INT int `json:"int"`
	VIT int `json:"vit"`
	WIS int `json:"wis"`
	CHA int `json:"cha"`
}

func (s Stats) Get(a Attribute) int {
	switch a {
	case STR:
		return s.STR
	case INT:
		return s.INT
	case VIT:
		return s.VIT
	case WIS:
		return s.WIS
	case CHA:
		return s.CHA
	}
	return 0
}

func (s *Stats) Set(a Attribute, v int) {
	switch a {
	case STR:
		s.STR = v
	case INT:
		s.INT = v
	case VIT:
		s.VIT = v
	case WIS:
		s.WIS = v
	case CHA:
		s.CHA = v
	}
}

func (s Stats) Sum() int {
	return s.STR + s.INT + s.VIT + s.WIS + s.CHA
}

// ToMap converts the stats to a lowercase keyed map.
func (s Stats) ToMap() map[string]int {
	return map[string]int{
		"str": s.STR,
		"int": s.INT,
		"vit": s.VIT,
		"wis": s.WIS,
		"cha": s.CHA,
	}
}
