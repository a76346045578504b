package badge

// verdanaAdvances approximates Verdana 11px glyph advances for
// printable ASCII. Values mirror the widths shields.io assumes when no
// font is available for measurement.
var verdanaAdvances = map[rune]float64{
	' ': 3.9, '!': 4.4, '"': 5.9, '#': 9.1, '$': 7.0, '%': 11.7, '&': 7.9,
	'\'': 3.0, '(': 4.9, ')': 4.9, '*': 7.0, '+': 9.1, ',': 4.0, '-': 5.0,
	'.': 4.0, '/': 5.0, '0': 7.0, '1': 7.0, '2': 7.0, '3': 7.0, '4': 7.0,
	'5': 7.0, '6': 7.0, '7': 7.0, '8': 7.0, '9': 7.0, ':': 4.8, ';': 4.8,
	'<': 9.1, '=': 9.1, '>': 9.1, '?': 6.0, '@': 11.0,
	'A': 7.6, 'B': 7.6, 'C': 7.8, 'D': 8.5, 'E': 7.0, 'F': 6.4, 'G': 8.6,
	'H': 8.3, 'I': 4.6, 'J': 5.0, 'K': 7.7, 'L': 6.1, 'M': 9.5, 'N': 8.4,
	'O': 8.7, 'P': 6.7, 'Q': 8.7, 'R': 7.7, 'S': 7.6, 'T': 6.8, 'U': 8.1,
	'V': 7.6, 'W': 10.9, 'X': 7.6, 'Y': 6.8, 'Z': 7.6,
	'[': 4.9, '\\': 5.0, ']': 4.9, '^': 9.1, '_': 7.0, '`': 7.0,
	'a': 6.7, 'b': 7.0, 'c': 5.9, 'd': 7.0, 'e': 6.8, 'f': 4.1, 'g': 7.0,
	'h': 7.0, 'i': 3.1, 'j': 3.9, 'k': 6.5, 'l': 3.1, 'm': 10.8, 'n': 7.0,
	'o': 6.9, 'p': 7.0, 'q': 7.0, 'r': 4.8, 's': 5.9, 't': 4.5, 'u': 7.0,
	'v': 6.5, 'w': 9.5, 'x': 6.5, 'y': 6.5, 'z': 5.9,
	'{': 7.0, '|': 5.0, '}': 7.0, '~': 9.1,
}
