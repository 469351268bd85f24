package worldmap

// chernarusLocations lists the major named settlements and landmarks
// with their world coordinates.
var chernarusLocations = []location{
	{"Balota", 4440, 2400},
	{"Berezino", 12150, 9000},
	{"Berezhki", 13350, 14400},
	{"Bor", 3150, 3900},
	{"Chapaevsk", 9350, 13500},
	{"Chernogorsk", 6650, 2600},
	{"Dolina", 11050, 6550},
	{"Dubky", 6850, 3350},
	{"Dubovo", 6750, 5950},
	{"Elektrozavodsk", 10150, 2000},
	{"Gorka", 9550, 8850},
	{"Green Mountain", 3700, 5980},
	{"Grishino", 5950, 10950},
	{"Guglovo", 8350, 6650},
	{"Kabanino", 5350, 8550},
	{"Kamensk", 7300, 14650},
	{"Kamyshovo", 12050, 3500},
	{"Krasnostav", 11150, 12300},
	{"Lopatino", 2700, 10000},
	{"Msta", 11250, 5350},
	{"Myshkino", 2050, 7350},
	{"Nadezhdino", 5850, 4800},
	{"Novaya Petrovka", 3450, 13250},
	{"Novodmitrovsk", 11700, 14400},
	{"Novoselky", 6050, 3350},
	{"Novy Sobor", 7100, 7700},
	{"Olsha", 13350, 13100},
	{"Orlovets", 12250, 7150},
	{"Pavlovo", 1650, 3900},
	{"Polana", 10450, 6150},
	{"Prigorodki", 7950, 3250},
	{"Pusta", 9250, 3850},
	{"Pustoshka", 3050, 7950},
	{"Ratnoe", 6150, 13600},
	{"Severograd", 7950, 12500},
	{"Solnichniy", 13350, 6150},
	{"Staroye", 10150, 5450},
	{"Stary Sobor", 6050, 7700},
	{"Stary Yar", 2150, 12950},
	{"Svergino", 4550, 12450},
	{"Svetlojarsk", 13800, 13150},
	{"Tisy", 1750, 14350},
	{"Topolka Dam", 10950, 2850},
	{"Troitskoe", 9300, 15000},
	{"Tulga", 12750, 4350},
	{"Turovo", 12350, 11050},
	{"Vavilovo", 3250, 11850},
	{"Vybor", 3750, 8900},
	{"Vyshnoye", 6550, 6050},
	{"Zaprudnoe", 8650, 14300},
	{"Zelenogorsk", 2750, 5250},
	{"Zub Castle", 6550, 5600},
}
