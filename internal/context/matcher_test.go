package context

import "testing"

func TestCanonicalizeStripsTrackingParamsAndFragment(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "utm params and fragment stripped",
			in:   "https://example.com/article?utm_source=x&utm_medium=y&id=5#section-2",
			want: "https://example.com/article?id=5",
		},
		{
			name: "ref fbclid gclid stripped",
			in:   "https://shop.example.com/item?ref=abc&fbclid=123&gclid=456&sku=9",
			want: "https://shop.example.com/item?sku=9",
		},
		{
			name: "no query untouched",
			in:   "https://example.com/path",
			want: "https://example.com/path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := canonicalize(tt.in)
			if got != tt.want {
				t.Errorf("canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDeriveKeywordsActivityPatterns(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want []string
	}{
		{name: "netflix", url: "https://www.netflix.com/watch/12345", want: []string{"netflix"}},
		{name: "spotify", url: "https://open.spotify.com/track/abc", want: []string{"spotify"}},
		{name: "booking", url: "https://www.booking.com/hotel/in/taj.html", want: []string{"booking"}},
		{name: "generic hotels path", url: "https://example.com/goa-hotels/listing", want: []string{"goa"}},
		{name: "no pattern falls back to tokenizer", url: "https://example.com/my-calendar-event", want: []string{"calendar", "event"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := deriveKeywords(tt.url)
			if len(got) != len(tt.want) {
				t.Fatalf("deriveKeywords(%q) = %v, want %v", tt.url, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("deriveKeywords(%q) = %v, want %v", tt.url, got, tt.want)
				}
			}
		})
	}
}

func TestTokenizePathDropsShortAndNumericTokens(t *testing.T) {
	got := tokenizePath("/My-Trip-42/to/Goa/id/5")
	want := []string{"trip", "goa"}
	if len(got) != len(want) {
		t.Fatalf("tokenizePath = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tokenizePath = %v, want %v", got, want)
		}
	}
}

func TestIsAllDigits(t *testing.T) {
	if !isAllDigits("1234") {
		t.Error("expected 1234 to be all digits")
	}
	if isAllDigits("12a4") {
		t.Error("expected 12a4 to not be all digits")
	}
	if isAllDigits("") {
		t.Error("expected empty string to not be all digits")
	}
}

func TestDedupePreservesFirstOccurrenceOrder(t *testing.T) {
	got := dedupe([]string{"goa", "trip", "goa", "", "hotel", "trip"})
	want := []string{"goa", "trip", "hotel"}
	if len(got) != len(want) {
		t.Fatalf("dedupe = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dedupe = %v, want %v", got, want)
		}
	}
}
