package asr

import (
	"testing"
	"time"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestBuildWordsGroupsSubwords(t *testing.T) {
	tokens := []Token{
		{Text: "[_BEG_]"},
		{Text: " Hel", P: 0.8, Start: ms(0), End: ms(100)},
		{Text: "lo", P: 0.6, Start: ms(100), End: ms(200)},
		{Text: " world", P: 0.9, Start: ms(250), End: ms(500)},
		{Text: "<|endoftext|>"},
	}
	words := BuildWords(tokens)
	if len(words) != 2 {
		t.Fatalf("words %+v", words)
	}
	if words[0].Text != " Hello" || words[0].Start != 0 || words[0].End != ms(200) {
		t.Fatalf("first word %+v", words[0])
	}
	if p := words[0].Probability; p < 0.69 || p > 0.71 {
		t.Fatalf("first word probability %v", p)
	}
	if words[1].Text != " world" {
		t.Fatalf("second word %+v", words[1])
	}
}

func TestMergePunctuations(t *testing.T) {
	words := []Word{
		{Text: " \"", Start: ms(0), End: ms(10)},
		{Text: " Hello", Start: ms(10), End: ms(200)},
		{Text: ",", Start: ms(200), End: ms(210)},
		{Text: " world", Start: ms(300), End: ms(500)},
		{Text: ".", Start: ms(500), End: ms(510)},
		{Text: "\"", Start: ms(510), End: ms(520)},
	}
	got := MergePunctuations(words, "\"'“¿([{-", "\"'.。,，!！?？:：”)]}、")
	want := []Word{
		{Text: " \" Hello,", Start: ms(0), End: ms(210)},
		{Text: " world.\"", Start: ms(300), End: ms(520)},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("word %d: got %+v want %+v", i, got[i], want[i])
		}
	}
	if words[2].Text != "," {
		t.Fatalf("input slice was modified")
	}
}

func TestJoinSegments(t *testing.T) {
	got := JoinSegments([]Segment{{Text: " Hello"}, {Text: "  "}, {Text: "world. "}})
	if got != "Hello world." {
		t.Fatalf("got %q", got)
	}
}
