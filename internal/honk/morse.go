package honk

import (
	"strings"
	"time"
)

var morseCode = map[rune]string{
	'A': ".-", 'B': "-...", 'C': "-.-.", 'D': "-..",
	'E': ".", 'F': "..-.", 'G': "--.", 'H': "....",
	'I': "..", 'J': ".---", 'K': "-.-", 'L': ".-..",
	'M': "--", 'N': "-.", 'O': "---", 'P': ".--.",
	'Q': "--.-", 'R': ".-.", 'S': "...", 'T': "-",
	'U': "..-", 'V': "...-", 'W': ".--", 'X': "-..-",
	'Y': "-.--", 'Z': "--..",
	'Ä': ".-.-", 'Ö': "---.", 'Ü': "..--", 'ẞ': "...--..",
	'0': "-----", '1': ".----", '2': "..---", '3': "...--",
	'4': "....-", '5': ".....", '6': "-....", '7': "--...",
	'8': "---..", '9': "----.",
	'@': ".--.-.", '.': ".-.-.-", ',': "--..--", '?': "..--..",
	'!': "-.-.--", '/': "-..-.", '(': "-.--.", ')': "-.--.-",
	'&': ".-...", ':': "---...", ';': "-.-.-.", '=': "-...-",
	'+': ".-.-.", '-': "-....-", '_': "..--.-", '"': ".-..-.",
	'$': "...-..-", '\'': ".----.",
}

// DefaultDit is the dot length used when none is configured.
const DefaultDit = 200 * time.Millisecond

// FromMorse converts text to a relay pattern. A dot holds the horn for one
// dit, a dash for three. Symbols are separated by one silent dit,
// characters by three and words by seven. Characters without a Morse code
// are skipped. The pattern always ends with a word gap so it can loop.
func FromMorse(text string, dit time.Duration) Pattern {
	if dit <= 0 {
		dit = DefaultDit
	}
	text = strings.ToUpper(strings.ReplaceAll(text, "ß", "ẞ"))
	if !strings.HasSuffix(text, " ") {
		text += " "
	}
	runes := []rune(text)
	var steps []Step
	for i, r := range runes {
		if r == ' ' {
			steps = append(steps, Step{High: false, Hold: 7 * dit})
			continue
		}
		code, ok := morseCode[r]
		if !ok {
			continue
		}
		for j, sym := range code {
			hold := dit
			if sym == '-' {
				hold = 3 * dit
			}
			steps = append(steps, Step{High: true, Hold: hold})
			if j < len(code)-1 {
				steps = append(steps, Step{High: false, Hold: dit})
			}
		}
		if i < len(runes)-1 && runes[i+1] != ' ' {
			steps = append(steps, Step{High: false, Hold: 3 * dit})
		}
	}
	p := FromSteps(steps)
	if len(p.Holds) == 1 && !p.FirstHigh {
		// Nothing but gaps.
		return Pattern{}
	}
	return p
}
