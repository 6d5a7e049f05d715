package catalog

import "context"

// Static is the built-in catalog, used when no database is configured.
// Content mirrors the base game box: 30 means cards, 30 clue cards, one
// cause-of-death tile, four location tiles and a dozen scene tiles.
type Static struct{}

// NewStatic returns the built-in catalog.
func NewStatic() *Static {
	return &Static{}
}

func (s *Static) ListCards(_ context.Context, cardType string) ([]Card, error) {
	switch cardType {
	case CardMeans:
		return cards(CardMeans, meansCards), nil
	case CardClue:
		return cards(CardClue, clueCards), nil
	}

	return nil, nil
}

func (s *Static) ListTiles(_ context.Context, tileType string) ([]Tile, error) {
	out := make([]Tile, 0, len(tiles))

	for _, t := range tiles {
		if t.Type == tileType {
			out = append(out, t)
		}
	}

	return out, nil
}

func cards(cardType string, defs []cardDef) []Card {
	out := make([]Card, 0, len(defs))

	for _, d := range defs {
		out = append(out, Card{
			ID:      d.id,
			Type:    cardType,
			Content: d.content,
		})
	}

	return out
}

type cardDef struct {
	id      string
	content string
}

var meansCards = []cardDef{
	{"means_knife", "Knife"},
	{"means_poison", "Poison"},
	{"means_rope", "Rope"},
	{"means_pistol", "Pistol"},
	{"means_explosives", "Explosives"},
	{"means_dagger", "Dagger"},
	{"means_axe", "Axe"},
	{"means_brick", "Brick"},
	{"means_scissors", "Scissors"},
	{"means_wrench", "Wrench"},
	{"means_candlestick", "Candlestick"},
	{"means_syringe", "Syringe"},
	{"means_electric_shock", "Electric Shock"},
	{"means_drowning", "Drowning"},
	{"means_starvation", "Starvation"},
	{"means_gas", "Gas"},
	{"means_acid", "Acid"},
	{"means_machete", "Machete"},
	{"means_crossbow", "Crossbow"},
	{"means_hammer", "Hammer"},
	{"means_shovel", "Shovel"},
	{"means_ice_pick", "Ice Pick"},
	{"means_pillow", "Pillow"},
	{"means_venomous_snake", "Venomous Snake"},
	{"means_chainsaw", "Chainsaw"},
	{"means_poisoned_needle", "Poisoned Needle"},
	{"means_scalpel", "Scalpel"},
	{"means_metal_bat", "Metal Bat"},
	{"means_sedatives", "Sedatives"},
	{"means_plastic_bag", "Plastic Bag"},
}

var clueCards = []cardDef{
	{"clue_glasses", "Glasses"},
	{"clue_wallet", "Wallet"},
	{"clue_mobile_phone", "Mobile Phone"},
	{"clue_ring", "Ring"},
	{"clue_watch", "Watch"},
	{"clue_diary", "Diary"},
	{"clue_photograph", "Photograph"},
	{"clue_lipstick", "Lipstick"},
	{"clue_cigarette_butt", "Cigarette Butt"},
	{"clue_fingerprint", "Fingerprint"},
	{"clue_button", "Button"},
	{"clue_receipt", "Receipt"},
	{"clue_key", "Key"},
	{"clue_glove", "Glove"},
	{"clue_hair_strand", "Hair Strand"},
	{"clue_letter", "Letter"},
	{"clue_map", "Map"},
	{"clue_badge", "Badge"},
	{"clue_train_ticket", "Train Ticket"},
	{"clue_wine_glass", "Wine Glass"},
	{"clue_umbrella", "Umbrella"},
	{"clue_handkerchief", "Handkerchief"},
	{"clue_coin", "Coin"},
	{"clue_necklace", "Necklace"},
	{"clue_notebook", "Notebook"},
	{"clue_usb_drive", "USB Drive"},
	{"clue_business_card", "Business Card"},
	{"clue_perfume_bottle", "Perfume Bottle"},
	{"clue_footprint", "Footprint"},
	{"clue_torn_fabric", "Torn Fabric"},
}

var tiles = []Tile{
	{
		ID:      "tile_cause_of_death",
		Name:    "Cause of Death",
		Type:    TileCauseOfDeath,
		Options: []string{"Suffocation", "Severe Injury", "Loss of Blood", "Illness/Disease", "Accident"},
	},
	{
		ID:      "tile_location_indoor",
		Name:    "Location of Crime (Indoor)",
		Type:    TileLocation,
		Options: []string{"Bedroom", "Living Room", "Bathroom", "Kitchen", "Basement", "Balcony"},
	},
	{
		ID:      "tile_location_outdoor",
		Name:    "Location of Crime (Outdoor)",
		Type:    TileLocation,
		Options: []string{"Park", "Street", "Beach", "Forest", "Parking Lot", "Alley"},
	},
	{
		ID:      "tile_location_building",
		Name:    "Location of Crime (Building)",
		Type:    TileLocation,
		Options: []string{"School", "Hospital", "Office", "Restaurant", "Hotel", "Supermarket"},
	},
	{
		ID:      "tile_location_transport",
		Name:    "Location of Crime (Transport)",
		Type:    TileLocation,
		Options: []string{"Bus", "Train", "Taxi", "Ship", "Airplane", "Subway"},
	},
	{
		ID:      "tile_motive",
		Name:    "Murderer's Motive",
		Type:    TileScene,
		Options: []string{"Hatred", "Power", "Money", "Love", "Jealousy", "Justice"},
	},
	{
		ID:      "tile_time_of_crime",
		Name:    "Time of Crime",
		Type:    TileScene,
		Options: []string{"Dawn", "Morning", "Noon", "Afternoon", "Evening", "Midnight"},
	},
	{
		ID:      "tile_duration",
		Name:    "Duration of Crime",
		Type:    TileScene,
		Options: []string{"Instantaneous", "Brief", "Gradual", "Prolonged", "Repeated", "Unclear"},
	},
	{
		ID:      "tile_weather",
		Name:    "Weather",
		Type:    TileScene,
		Options: []string{"Sunny", "Rainy", "Windy", "Snowy", "Foggy", "Stormy"},
	},
	{
		ID:      "tile_state_of_scene",
		Name:    "State of the Scene",
		Type:    TileScene,
		Options: []string{"Tidy", "Chaotic", "Staged", "Hidden", "Burned", "Flooded"},
	},
	{
		ID:      "tile_victim_identity",
		Name:    "Victim's Identity",
		Type:    TileScene,
		Options: []string{"Child", "Student", "Elder", "Professional", "Stranger", "Public Figure"},
	},
	{
		ID:      "tile_victim_expression",
		Name:    "Victim's Expression",
		Type:    TileScene,
		Options: []string{"Peaceful", "Frightened", "Angry", "Surprised", "Pained", "Blank"},
	},
	{
		ID:      "tile_victim_clothing",
		Name:    "Victim's Clothing",
		Type:    TileScene,
		Options: []string{"Formal", "Casual", "Uniform", "Sleepwear", "Sportswear", "Disheveled"},
	},
	{
		ID:      "tile_relationship",
		Name:    "Relationship with Victim",
		Type:    TileScene,
		Options: []string{"Family", "Friend", "Colleague", "Rival", "Lover", "Stranger"},
	},
	{
		ID:      "tile_evidence_left",
		Name:    "Evidence Left Behind",
		Type:    TileScene,
		Options: []string{"Weapon", "Note", "Footprints", "Bloodstain", "Nothing", "Personal Item"},
	},
	{
		ID:      "tile_social_circle",
		Name:    "Victim's Social Circle",
		Type:    TileScene,
		Options: []string{"Wide", "Narrow", "Secretive", "Online Only", "Work Only", "Unknown"},
	},
	{
		ID:      "tile_general_impression",
		Name:    "General Impression",
		Type:    TileScene,
		Options: []string{"Crime of Passion", "Premeditated", "Opportunistic", "Professional", "Accidental", "Ritualistic"},
	},
}
