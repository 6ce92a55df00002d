package asr

import "strings"

// BuildWords groups decoder tokens into words. A token starting with a space
// opens a new word; special tokens such as "[_BEG_]" or "<|en|>" are skipped.
func BuildWords(tokens []Token) []Word {
	var words []Word
	var probSum float32
	var n int
	flush := func() {
		if n > 0 {
			words[len(words)-1].Probability = probSum / float32(n)
		}
		probSum, n = 0, 0
	}
	for _, tok := range tokens {
		if isSpecial(tok.Text) || tok.Text == "" {
			continue
		}
		if len(words) == 0 || strings.HasPrefix(tok.Text, " ") {
			flush()
			words = append(words, Word{Text: tok.Text, Start: tok.Start, End: tok.End})
		} else {
			w := &words[len(words)-1]
			w.Text += tok.Text
			w.End = tok.End
		}
		probSum += tok.P
		n++
	}
	flush()
	return words
}

func isSpecial(text string) bool {
	return strings.HasPrefix(text, "[_") || strings.HasPrefix(text, "<|")
}

// MergePunctuations attaches leading punctuation words to the following word
// and trailing punctuation to the preceding one, then drops the emptied words.
func MergePunctuations(words []Word, prepended, appended string) []Word {
	if len(words) == 0 {
		return words
	}
	out := make([]Word, len(words))
	copy(out, words)

	i, j := len(out)-2, len(out)-1
	for i >= 0 {
		prev, next := &out[i], &out[j]
		if strings.HasPrefix(prev.Text, " ") && containsWord(prepended, strings.TrimSpace(prev.Text)) {
			next.Text = prev.Text + next.Text
			next.Start = prev.Start
			prev.Text = ""
		} else {
			j = i
		}
		i--
	}

	i, j = 0, 1
	for j < len(out) {
		prev, next := &out[i], &out[j]
		if prev.Text != "" && !strings.HasSuffix(prev.Text, " ") && containsWord(appended, next.Text) {
			prev.Text += next.Text
			prev.End = next.End
			next.Text = ""
		} else {
			i = j
		}
		j++
	}

	kept := out[:0]
	for _, w := range out {
		if w.Text != "" {
			kept = append(kept, w)
		}
	}
	return kept
}

// containsWord reports whether w is a non-empty run of characters from set.
func containsWord(set, w string) bool {
	if w == "" {
		return false
	}
	for _, r := range w {
		if !strings.ContainsRune(set, r) {
			return false
		}
	}
	return true
}
