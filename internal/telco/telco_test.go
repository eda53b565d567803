package telco

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"08031234567":    "08031234567",
		"+2348031234567": "08031234567",
		"2348031234567":  "08031234567",
		"0803 123 4567":  "08031234567",
	}
	for in, want := range cases {
		got, err := NormalizePhone(in)
		if err != nil {
			t.Fatalf("normalize %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("normalize %q: expected %s got %s", in, want, got)
		}
	}

	for _, bad := range []string{"", "12345", "0603123456a", "06031234567", "080312345678"} {
		if _, err := NormalizePhone(bad); err != ErrInvalidPhone {
			t.Fatalf("expected invalid phone for %q, got %v", bad, err)
		}
	}
}

func TestParseProvider(t *testing.T) {
	for in, want := range map[string]Provider{"MTN": MTN, "62120": Airtel, "glo": Glo, "Etisalat": NineMob} {
		got, err := ParseProvider(in)
		if err != nil || got != want {
			t.Fatalf("parse %q: expected %s got %s (%v)", in, want, got, err)
		}
	}
	if _, err := ParseProvider("vodafone"); err != ErrUnknownProvider {
		t.Fatalf("expected unknown provider, got %v", err)
	}
}

func TestDetect(t *testing.T) {
	if p, ok := Detect("08051234567"); !ok || p != Glo {
		t.Fatalf("expected glo, got %s %v", p, ok)
	}
	if _, ok := Detect("07991234567"); ok {
		t.Fatal("expected unknown prefix")
	}
}
