package color

// Mode is the terminal's color capability, used to pick how far a markup
// tag's color must be downgraded before it is safe to write to the client.
type Mode int

const (
	ModeNone Mode = iota
	Mode16
	Mode256
	ModeTrueColor
)

// clearSeq resets terminal color state; emitted whenever a render ends with
// an unbalanced color stack still open.
const clearSeq = "\x1b[m"

// cubeOffset is the xterm 256-palette index where the 6x6x6 color cube
// begins; grayOffset is where the 24-step grayscale ramp begins. Indices
// below cubeOffset are the 16 system colors.
const (
	cubeOffset = 16
	grayOffset = 232
)

// cubeToColorValue maps a 0-5 cube coordinate to its 0-255 channel value,
// matching xterm's nonlinear cube curve exactly.
var cubeToColorValue = [6]uint8{0x00, 0x5f, 0x87, 0xaf, 0xd7, 0xff}

// colors256 is the RGB value of every index in the xterm 256-color palette:
// 0-15 system colors, 16-231 the 6x6x6 cube, 232-255 the grayscale ramp.
var colors256 = [256]uint32{
	0x000000, 0x800000, 0x008000, 0x808000, 0x000080, 0x800080, 0x008080, 0xc0c0c0, 0x808080,
	0xff0000, 0x00ff00, 0xffff00, 0x0000ff, 0xff00ff, 0x00ffff, 0xffffff, 0x000000, 0x00005f,
	0x000087, 0x0000af, 0x0000d7, 0x0000ff, 0x005f00, 0x005f5f, 0x005f87, 0x005faf, 0x005fd7,
	0x005fff, 0x008700, 0x00875f, 0x008787, 0x0087af, 0x0087d7, 0x0087ff, 0x00af00, 0x00af5f,
	0x00af87, 0x00afaf, 0x00afd7, 0x00afff, 0x00d700, 0x00d75f, 0x00d787, 0x00d7af, 0x00d7d7,
	0x00d7ff, 0x00ff00, 0x00ff5f, 0x00ff87, 0x00ffaf, 0x00ffd7, 0x00ffff, 0x5f0000, 0x5f005f,
	0x5f0087, 0x5f00af, 0x5f00d7, 0x5f00ff, 0x5f5f00, 0x5f5f5f, 0x5f5f87, 0x5f5faf, 0x5f5fd7,
	0x5f5fff, 0x5f8700, 0x5f875f, 0x5f8787, 0x5f87af, 0x5f87d7, 0x5f87ff, 0x5faf00, 0x5faf5f,
	0x5faf87, 0x5fafaf, 0x5fafd7, 0x5fafff, 0x5fd700, 0x5fd75f, 0x5fd787, 0x5fd7af, 0x5fd7d7,
	0x5fd7ff, 0x5fff00, 0x5fff5f, 0x5fff87, 0x5fffaf, 0x5fffd7, 0x5fffff, 0x870000, 0x87005f,
	0x870087, 0x8700af, 0x8700d7, 0x8700ff, 0x875f00, 0x875f5f, 0x875f87, 0x875faf, 0x875fd7,
	0x875fff, 0x878700, 0x87875f, 0x878787, 0x8787af, 0x8787d7, 0x8787ff, 0x87af00, 0x87af5f,
	0x87af87, 0x87afaf, 0x87afd7, 0x87afff, 0x87d700, 0x87d75f, 0x87d787, 0x87d7af, 0x87d7d7,
	0x87d7ff, 0x87ff00, 0x87ff5f, 0x87ff87, 0x87ffaf, 0x87ffd7, 0x87ffff, 0xaf0000, 0xaf005f,
	0xaf0087, 0xaf00af, 0xaf00d7, 0xaf00ff, 0xaf5f00, 0xaf5f5f, 0xaf5f87, 0xaf5faf, 0xaf5fd7,
	0xaf5fff, 0xaf8700, 0xaf875f, 0xaf8787, 0xaf87af, 0xaf87d7, 0xaf87ff, 0xafaf00, 0xafaf5f,
	0xafaf87, 0xafafaf, 0xafafd7, 0xafafff, 0xafd700, 0xafd75f, 0xafd787, 0xafd7af, 0xafd7d7,
	0xafd7ff, 0xafff00, 0xafff5f, 0xafff87, 0xafffaf, 0xafffd7, 0xafffff, 0xd70000, 0xd7005f,
	0xd70087, 0xd700af, 0xd700d7, 0xd700ff, 0xd75f00, 0xd75f5f, 0xd75f87, 0xd75faf, 0xd75fd7,
	0xd75fff, 0xd78700, 0xd7875f, 0xd78787, 0xd787af, 0xd787d7, 0xd787ff, 0xd7af00, 0xd7af5f,
	0xd7af87, 0xd7afaf, 0xd7afd7, 0xd7afff, 0xd7d700, 0xd7d75f, 0xd7d787, 0xd7d7af, 0xd7d7d7,
	0xd7d7ff, 0xd7ff00, 0xd7ff5f, 0xd7ff87, 0xd7ffaf, 0xd7ffd7, 0xd7ffff, 0xff0000, 0xff005f,
	0xff0087, 0xff00af, 0xff00d7, 0xff00ff, 0xff5f00, 0xff5f5f, 0xff5f87, 0xff5faf, 0xff5fd7,
	0xff5fff, 0xff8700, 0xff875f, 0xff8787, 0xff87af, 0xff87d7, 0xff87ff, 0xffaf00, 0xffaf5f,
	0xffaf87, 0xffafaf, 0xffafd7, 0xffafff, 0xffd700, 0xffd75f, 0xffd787, 0xffd7af, 0xffd7d7,
	0xffd7ff, 0xffff00, 0xffff5f, 0xffff87, 0xffffaf, 0xffffd7, 0xffffff, 0x080808, 0x121212,
	0x1c1c1c, 0x262626, 0x303030, 0x3a3a3a, 0x444444, 0x4e4e4e, 0x585858, 0x626262, 0x6c6c6c,
	0x767676, 0x808080, 0x8a8a8a, 0x949494, 0x9e9e9e, 0xa8a8a8, 0xb2b2b2, 0xbcbcbc, 0xc6c6c6,
	0xd0d0d0, 0xdadada, 0xe4e4e4, 0xeeeeee,}

// colors256To16 maps each 256-palette index down to its nearest of the 16
// system colors, used for the 256->16 downgrade step.
var colors256To16 = [256]uint8{
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
	0, 4, 4, 4, 12, 12, 2, 6, 4, 4, 12, 12, 2, 2, 6, 4,
	12, 12, 2, 2, 2, 6, 12, 12, 10, 10, 10, 10, 14, 12, 10, 10,
	10, 10, 10, 14, 1, 5, 4, 4, 12, 12, 3, 8, 4, 4, 12, 12,
	2, 2, 6, 4, 12, 12, 2, 2, 2, 6, 12, 12, 10, 10, 10, 10,
	14, 12, 10, 10, 10, 10, 10, 14, 1, 1, 5, 4, 12, 12, 1, 1,
	5, 4, 12, 12, 3, 3, 8, 4, 12, 12, 2, 2, 2, 6, 12, 12,
	10, 10, 10, 10, 14, 12, 10, 10, 10, 10, 10, 14, 1, 1, 1, 5,
	12, 12, 1, 1, 1, 5, 12, 12, 1, 1, 1, 5, 12, 12, 3, 3,
	3, 7, 12, 12, 10, 10, 10, 10, 14, 12, 10, 10, 10, 10, 10, 14,
	9, 9, 9, 9, 13, 12, 9, 9, 9, 9, 13, 12, 9, 9, 9, 9,
	13, 12, 9, 9, 9, 9, 13, 12, 11, 11, 11, 11, 7, 12, 10, 10,
	10, 10, 10, 14, 9, 9, 9, 9, 9, 13, 9, 9, 9, 9, 9, 13,
	9, 9, 9, 9, 9, 13, 9, 9, 9, 9, 9, 13, 9, 9, 9, 9,
	9, 13, 11, 11, 11, 11, 11, 15, 0, 0, 0, 0, 0, 0, 8, 8,
	8, 8, 8, 8, 7, 7, 7, 7, 7, 7, 15, 15, 15, 15, 15, 15,}

// colorNames maps a case-folded tag name (as written inside `|NAME|`) to its
// xterm 256-palette index. The source color table this is ported from
// carried two "darkseagreen3" entries (108 and 150); this map keeps only the
// later one, per the documented defect fix.
var colorNames = map[string]uint8{
	"aqua": 14,
	"aquamarine1": 79,
	"aquamarine2": 86,
	"aquamarine3": 122,
	"black": 0,
	"blue": 12,
	"blue1": 19,
	"blue2": 20,
	"blue3": 21,
	"blueviolet": 57,
	"cadetblue1": 72,
	"cadetblue2": 73,
	"chartreuse1": 64,
	"chartreuse2": 70,
	"chartreuse3": 76,
	"chartreuse4": 82,
	"chartreuse5": 112,
	"chartreuse6": 118,
	"cornflowerblue": 69,
	"cornsilk": 230,
	"cyan1": 43,
	"cyan2": 50,
	"cyan3": 51,
	"darkblue": 18,
	"darkcyan": 36,
	"darkgoldenrod": 136,
	"darkgreen": 22,
	"darkkhaki": 143,
	"darkmagenta1": 90,
	"darkmagenta2": 91,
	"darkolivegreen1": 107,
	"darkolivegreen2": 113,
	"darkolivegreen3": 149,
	"darkolivegreen4": 155,
	"darkolivegreen5": 191,
	"darkolivegreen6": 192,
	"darkorange1": 130,
	"darkorange2": 166,
	"darkorange3": 208,
	"darkred1": 52,
	"darkred2": 88,
	"darkseagreen1": 65,
	"darkseagreen2": 71,
	"darkseagreen3": 150,
	"darkseagreen4": 115,
	"darkseagreen5": 151,
	"darkseagreen6": 157,
	"darkseagreen7": 158,
	"darkseagreen8": 193,
	"darkslategray1": 87,
	"darkslategray2": 116,
	"darkslategray3": 123,
	"darkturquoise": 44,
	"darkviolet1": 92,
	"darkviolet2": 128,
	"deeppink1": 53,
	"deeppink2": 89,
	"deeppink3": 125,
	"deeppink4": 161,
	"deeppink5": 162,
	"deeppink6": 197,
	"deeppink7": 198,
	"deeppink8": 199,
	"deepskyblue1": 23,
	"deepskyblue2": 24,
	"deepskyblue3": 25,
	"deepskyblue4": 31,
	"deepskyblue5": 32,
	"deepskyblue6": 38,
	"deepskyblue7": 39,
	"dodgerblue1": 26,
	"dodgerblue2": 27,
	"dodgerblue3": 33,
	"fuchsia": 13,
	"gold1": 142,
	"gold2": 178,
	"gold3": 220,
	"gray": 8,
	"gray0": 16,
	"gray100": 231,
	"gray11": 234,
	"gray15": 235,
	"gray19": 236,
	"gray23": 237,
	"gray27": 238,
	"gray3": 232,
	"gray30": 239,
	"gray35": 240,
	"gray37": 59,
	"gray39": 241,
	"gray42": 242,
	"gray46": 243,
	"gray50": 244,
	"gray53": 102,
	"gray54": 245,
	"gray58": 246,
	"gray62": 247,
	"gray63": 139,
	"gray66": 248,
	"gray69": 145,
	"gray7": 233,
	"gray70": 249,
	"gray74": 250,
	"gray78": 251,
	"gray82": 252,
	"gray84": 188,
	"gray85": 253,
	"gray89": 254,
	"gray93": 255,
	"green": 2,
	"green1": 28,
	"green2": 34,
	"green3": 40,
	"green4": 46,
	"greenyellow": 154,
	"honeydew": 194,
	"hotpink1": 132,
	"hotpink2": 168,
	"hotpink3": 169,
	"hotpink5": 205,
	"hotpink6": 206,
	"indianred1": 131,
	"indianred2": 167,
	"indianred3": 203,
	"indianred4": 204,
	"khaki1": 185,
	"khaki2": 228,
	"lightcoral": 210,
	"lightcyan1": 152,
	"lightcyan2": 195,
	"lightgoldenrod1": 179,
	"lightgoldenrod2": 186,
	"lightgoldenrod3": 221,
	"lightgoldenrod4": 222,
	"lightgoldenrod5": 227,
	"lightgreen1": 119,
	"lightgreen2": 120,
	"lightpink1": 95,
	"lightpink2": 174,
	"lightpink3": 217,
	"lightsalmon1": 137,
	"lightsalmon2": 173,
	"lightsalmon3": 216,
	"lightseagreen": 37,
	"lightskyblue1": 109,
	"lightskyblue2": 110,
	"lightskyblue3": 153,
	"lightslateblue": 105,
	"lightslategrey": 103,
	"lightsteelblue1": 146,
	"lightsteelblue2": 147,
	"lightsteelblue3": 189,
	"lightyellow": 187,
	"lime": 10,
	"magenta1": 127,
	"magenta2": 163,
	"magenta3": 164,
	"magenta4": 165,
	"magenta5": 200,
	"magenta6": 201,
	"maroon": 1,
	"mediumorchid1": 133,
	"mediumorchid2": 134,
	"mediumorchid3": 171,
	"mediumorchid4": 207,
	"mediumpurple1": 60,
	"mediumpurple2": 97,
	"mediumpurple3": 98,
	"mediumpurple4": 104,
	"mediumpurple5": 135,
	"mediumpurple6": 140,
	"mediumpurple7": 141,
	"mediumspringgreen": 49,
	"mediumturquoise": 80,
	"mediumvioletred": 126,
	"mistyrose1": 181,
	"mistyrose2": 224,
	"navajowhite1": 144,
	"navajowhite2": 223,
	"navy": 4,
	"navyblue": 17,
	"olive": 3,
	"orange1": 58,
	"orange2": 94,
	"orange3": 172,
	"orange4": 214,
	"orangered": 202,
	"orchid1": 170,
	"orchid2": 212,
	"orchid3": 213,
	"palegreen1": 77,
	"palegreen2": 114,
	"palegreen3": 121,
	"palegreen4": 156,
	"paleturquoise1": 66,
	"paleturquoise2": 159,
	"palevioletred": 211,
	"pink1": 175,
	"pink2": 218,
	"plum": 96,
	"plum2": 176,
	"plum3": 183,
	"plum4": 219,
	"purple": 5,
	"purple1": 54,
	"purple2": 55,
	"purple3": 56,
	"purple4": 93,
	"purple5": 129,
	"red": 9,
	"red1": 124,
	"red2": 160,
	"red3": 196,
	"rosybrown": 138,
	"royalblue": 63,
	"salmon": 209,
	"sandybrown": 215,
	"seagreen1": 78,
	"seagreen2": 83,
	"seagreen3": 84,
	"seagreen4": 85,
	"silver": 7,
	"skyblue1": 74,
	"skyblue2": 111,
	"skyblue3": 117,
	"slateblue1": 61,
	"slateblue2": 62,
	"slateblue3": 99,
	"springgreen1": 29,
	"springgreen2": 35,
	"springgreen3": 41,
	"springgreen4": 42,
	"springgreen5": 47,
	"springgreen6": 48,
	"steelblue1": 67,
	"steelblue2": 68,
	"steelblue3": 75,
	"steelblue4": 81,
	"tan": 180,
	"teal": 6,
	"thistle1": 182,
	"thistle2": 225,
	"turquoise1": 30,
	"turquoise2": 45,
	"violet": 177,
	"wheat1": 101,
	"wheat2": 229,
	"white": 15,
	"yellow": 11,
	"yellow1": 100,
	"yellow2": 106,
	"yellow3": 148,
	"yellow4": 184,
	"yellow5": 190,
	"yellow6": 226,
}
