package classify

// weaponNames maps raw item class names from the admin log to display
// names. Unmapped classes pass through unchanged.
var weaponNames = map[string]string{
	"AKM":                "AKM",
	"AK101":              "AK-101",
	"AK74":               "AK-74",
	"M4A1":               "M4-A1",
	"M16A2":              "M16-A2",
	"FAL":                "LAR",
	"SVD":                "VSD",
	"Winchester70":       "M70 Tundra",
	"CZ527":              "CZ 527",
	"CZ550":              "CZ 550",
	"Mosin9130":          "Mosin 91/30",
	"SKS":                "SKS",
	"Ruger1022":          "Sporter 22",
	"Repeater":           "Repeater Carbine",
	"Izh18":              "BK-18",
	"Izh43Shotgun":       "BK-43",
	"Saiga":              "Vaiga",
	"Mp133Shotgun":       "BK-133",
	"UMP45":              "USG-45",
	"MP5K":               "KA-M",
	"Bizon":              "SG5-K",
	"VSS":                "VSS",
	"ASVAL":              "VSS Val",
	"Scout":              "Pioneer",
	"B95":                "Blaze",
	"Longhorn":           "Longhorn",
	"Deagle":             "Deagle",
	"Colt1911":           "Kolt 1911",
	"Engraved1911":       "Kolt 1911 Engraved",
	"FNX45":              "FX-45",
	"Glock19":            "Mlock-91",
	"MakarovIJ70":        "IJ-70",
	"Mkii":               "Amphibia S",
	"P1":                 "P1-M",
	"Magnum":             "Magnum",
	"Derringer":          "Derringer",
	"Crossbow":           "Crossbow",
	"Bow":                "Improvised Bow",
	"BrassKnuckles":      "Brass Knuckles",
	"CombatKnife":        "Combat Knife",
	"HuntingKnife":       "Hunting Knife",
	"KitchenKnife":       "Kitchen Knife",
	"SteakKnife":         "Steak Knife",
	"Machete":            "Machete",
	"FirefighterAxe":     "Firefighter Axe",
	"WoodAxe":            "Wood Axe",
	"Hatchet":            "Hatchet",
	"Sword":              "Sword",
	"BaseballBat":        "Baseball Bat",
	"NailedBaseballBat":  "Nailed Baseball Bat",
	"BarbedBaseballBat":  "Barbed Wire Bat",
	"Crowbar":            "Crowbar",
	"Pickaxe":            "Pickaxe",
	"Shovel":             "Shovel",
	"FieldShovel":        "Field Shovel",
	"SledgeHammer":       "Sledgehammer",
	"Hammer":             "Hammer",
	"Mace":               "Mace",
	"PipeWrench":         "Pipe Wrench",
	"Wrench":             "Wrench",
	"Screwdriver":        "Screwdriver",
	"Cleaver":            "Cleaver",
	"FangeKnife":         "Fange Knife",
	"FragGrenade":        "Frag Grenade",
	"RGD5Grenade":        "RGD-5 Grenade",
	"LandMineTrap":       "Land Mine",
	"M79":                "M79 Grenade Launcher",
	"LAW":                "LAW",
	"RPG7":               "RPG-7",
}
