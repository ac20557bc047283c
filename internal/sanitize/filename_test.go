package sanitize

import (
	"strings"
	"testing"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "colon and space", input: "Test: File.mp3", want: "Test_File.mp3"},
		{name: "diacritics", input: "Tést Fíle.mp3", want: "Test_File.mp3"},
		{name: "playlist title", input: "My Mix", want: "My_Mix"},
		{name: "track title", input: "Song: One", want: "Song_One"},
		{name: "illegal characters", input: `a<b>c:d"e/f\g|h?i*j`, want: "abcdefghij"},
		{name: "whitespace and underscore runs", input: "a  _ \t__b", want: "a_b"},
		{name: "leading and trailing junk", input: " ._.Hello World._ ", want: "Hello_World"},
		{name: "control characters", input: "bad\x00na\x1bme", want: "badname"},
		{name: "non decomposing latin", input: "Straße Øre Łódź", want: "Strasse_Ore_Lodz"},
		{name: "cjk is transliterated", input: "Mix 東京 Night", want: "Mix_Dong_Jing_Night"},
		{name: "cyrillic is transliterated", input: "Кино - Группа крови", want: "Kino_-_Gruppa_krovi"},
		{name: "greek is transliterated", input: "Σιωπή", want: "Siope"},
		{name: "dots inside name", input: "Mr. Brightside", want: "Mr._Brightside"},
		{name: "empty", input: "", want: Placeholder},
		{name: "only illegal", input: `???***`, want: Placeholder},
		{name: "only non ascii", input: "東京", want: "Dong_Jing"},
		{name: "empty name keeps extension", input: "???.webm", want: Placeholder + ".webm"},
		{name: "bare extension", input: ".webm", want: Placeholder + ".webm"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Filename(test.input); got != test.want {
				t.Fatalf("Filename(%q) = %q, want %q", test.input, got, test.want)
			}
		})
	}
}

func TestFilenameTruncatesNameNotExtension(t *testing.T) {
	got := Filename(strings.Repeat("a", 300) + ".mp3")
	want := strings.Repeat("a", 251) + ".mp3"
	if got != want {
		t.Fatalf("got %d bytes %q..., want %d bytes", len(got), got[:10], len(want))
	}

	noExt := Filename(strings.Repeat("b", 400))
	if len(noExt) != MaxLength {
		t.Fatalf("expected %d bytes, got %d", MaxLength, len(noExt))
	}
}

func TestFilenameTruncationTrimsCutSeparator(t *testing.T) {
	input := strings.Repeat("a", 249) + " b" + strings.Repeat("c", 20) + ".flac"
	got := Filename(input)
	if len(got) > MaxLength {
		t.Fatalf("length %d exceeds %d", len(got), MaxLength)
	}
	if !strings.HasSuffix(got, ".flac") {
		t.Fatalf("extension lost: %q", got[len(got)-10:])
	}
	if strings.Contains(got, "_.flac") {
		t.Fatalf("separator left before extension: %q", got[len(got)-10:])
	}
}

func TestFilenameProperties(t *testing.T) {
	inputs := []string{
		"",
		"Song: One",
		"Tést Fíle.mp3",
		`<>:"/\|?*`,
		"  __ leading and trailing __  ",
		"Ünïcödé — Títle (Remix) [2024]",
		"a_.mp3",
		"x." + strings.Repeat("y", 300),
		strings.Repeat("é", 200) + ".opus",
		strings.Repeat("ab ", 120) + "tail.mp",
		"東京 / 大阪 : 名古屋",
		"Группа крови.webm",
		"???.opus",
		"dots...everywhere...",
		"\t\n\r",
	}

	for _, input := range inputs {
		got := Filename(input)
		if strings.ContainsAny(got, illegal) {
			t.Errorf("Filename(%q) = %q contains illegal characters", input, got)
		}
		if len(got) > MaxLength {
			t.Errorf("Filename(%q) length %d exceeds %d", input, len(got), MaxLength)
		}
		if got == "" {
			t.Errorf("Filename(%q) returned empty string", input)
		}
		for _, r := range got {
			if r > 0x7e || r < 0x20 {
				t.Errorf("Filename(%q) = %q contains non printable ascii %U", input, got, r)
				break
			}
		}
		if again := Filename(got); again != got {
			t.Errorf("not idempotent: Filename(%q) = %q, Filename(%q) = %q", input, got, got, again)
		}
	}
}

func TestDiacriticsAreNotDeleted(t *testing.T) {
	got := Filename("Beyoncé Café")
	if got != "Beyonce_Cafe" {
		t.Fatalf("got %q", got)
	}
}

func TestStem(t *testing.T) {
	if got := Stem("Song: One.webm"); got != "Song_One" {
		t.Fatalf("Stem = %q", got)
	}
	if got := Stem("no extension here"); got != "no_extension_here" {
		t.Fatalf("Stem = %q", got)
	}
	if got := Stem(""); got != Placeholder {
		t.Fatalf("Stem of empty = %q", got)
	}
	if got := Stem("東京.webm"); got != "Dong_Jing" {
		t.Fatalf("Stem of cjk title = %q", got)
	}
	if got := Stem("***.webm"); got != Placeholder {
		t.Fatalf("Stem of empty name with extension = %q", got)
	}
}

func TestWithExtension(t *testing.T) {
	if got := WithExtension("Song: One.webm", "mp3"); got != "Song_One.mp3" {
		t.Fatalf("WithExtension = %q", got)
	}
	if got := WithExtension("Song Two", ".mp3"); got != "Song_Two.mp3" {
		t.Fatalf("WithExtension = %q", got)
	}
	long := WithExtension(strings.Repeat("z", 400), "mp3")
	if len(long) != MaxLength || !strings.HasSuffix(long, ".mp3") {
		t.Fatalf("unexpected long result: len=%d suffix=%q", len(long), long[len(long)-4:])
	}
}
