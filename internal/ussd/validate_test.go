package ussd

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParseAmount(t *testing.T) {
	valid := map[string]int64{"1": 1, "500": 500, "10000": 10_000, "007": 7}
	for in, want := range valid {
		if got, ok := parseAmount(in); !ok || got != want {
			t.Fatalf("parseAmount(%q) = %d, %v", in, got, ok)
		}
	}
	for _, in := range []string{"", "0", "-5", "1.5", "1,000", "abc", "1234567890"} {
		if _, ok := parseAmount(in); ok {
			t.Fatalf("parseAmount(%q) should fail", in)
		}
	}
}

func TestValidEmail(t *testing.T) {
	for _, in := range []string{"amina@example.com", "a.b@farm.co.ng"} {
		if !validEmail(in) {
			t.Fatalf("%q should be valid", in)
		}
	}
	for _, in := range []string{"amina", "amina@localhost", "Amina <amina@example.com>", "@example.com"} {
		if validEmail(in) {
			t.Fatalf("%q should be invalid", in)
		}
	}
}

func TestLastSegment(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"1":                "1",
		"1*Amina Bello":    "Amina Bello",
		"1*Amina Bello* ":  "",
		"2*1234*3*0803*50": "50",
	}
	for in, want := range cases {
		if got := lastSegment(in); got != want {
			t.Fatalf("lastSegment(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFitScreen(t *testing.T) {
	short := "Main menu"
	if fitScreen(short) != short {
		t.Fatal("short screens are untouched")
	}
	long := strings.Repeat("é", MaxScreenLength+20)
	got := fitScreen(long)
	if utf8.RuneCountInString(got) != MaxScreenLength || !strings.HasSuffix(got, "...") {
		t.Fatalf("unexpected truncation: %d runes", utf8.RuneCountInString(got))
	}
}

func TestEveryMenuFitsOneScreen(t *testing.T) {
	for _, screen := range []string{menuText, helpMenu, accountMenu, billMenu(), promptAirtimePhone} {
		if n := utf8.RuneCountInString(screen); n > MaxScreenLength {
			t.Fatalf("menu of %d runes exceeds a screen: %q", n, screen)
		}
	}
}
