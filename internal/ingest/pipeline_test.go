package ingest

import "testing"

func TestWebhookPayloadValidate(t *testing.T) {
	cases := []struct {
		name    string
		payload WebhookPayload
		wantErr bool
	}{
		{"missing event", WebhookPayload{Data: WebhookData{Key: WebhookKey{ID: "1"}}}, true},
		{"missing key id", WebhookPayload{Event: "messages.upsert"}, true},
		{"valid", WebhookPayload{Event: "messages.upsert", Data: WebhookData{Key: WebhookKey{ID: "1"}}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.payload.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestWebhookPayloadIsMessageUpsert(t *testing.T) {
	if (WebhookPayload{Event: "contacts.update"}).IsMessageUpsert() {
		t.Fatal("expected non-upsert event to report false")
	}
	if !(WebhookPayload{Event: "messages.upsert"}).IsMessageUpsert() {
		t.Fatal("expected messages.upsert to report true")
	}
}

func TestWebhookDataText(t *testing.T) {
	conv := WebhookData{Message: WebhookMessage{Conversation: "hi there"}}
	if conv.Text() != "hi there" {
		t.Fatalf("expected conversation text, got %q", conv.Text())
	}

	extended := WebhookData{Message: WebhookMessage{ExtendedTextMessage: &WebhookExtendedTextMessage{Text: "extended"}}}
	if extended.Text() != "extended" {
		t.Fatalf("expected extended text message text, got %q", extended.Text())
	}

	empty := WebhookData{}
	if empty.Text() != "" {
		t.Fatalf("expected empty text, got %q", empty.Text())
	}
}

func TestWebhookDataIsGroup(t *testing.T) {
	if !(WebhookData{Key: WebhookKey{RemoteJID: "123-456@g.us"}}).IsGroup() {
		t.Fatal("expected @g.us suffix to report group")
	}
	if (WebhookData{Key: WebhookKey{RemoteJID: "123456@s.whatsapp.net"}}).IsGroup() {
		t.Fatal("expected direct-chat jid to report non-group")
	}
}

func TestIsLowSignal(t *testing.T) {
	if !isLowSignal("hi") {
		t.Fatal("expected short message to be low signal")
	}
	if isLowSignal("let's meet tomorrow at noon") {
		t.Fatal("expected longer message to not be low signal")
	}
	if !isLowSignal("   ") {
		t.Fatal("expected whitespace-only message to be low signal")
	}
}

func TestDeriveContextURLPrefersGazetteerKeyword(t *testing.T) {
	got := deriveContextURL([]string{"zantyes", "goa"}, "Zantyes shop")
	if got != "zantyes" {
		t.Fatalf("expected first matching gazetteer keyword, got %q", got)
	}
}

func TestDeriveContextURLFallsBackToLocation(t *testing.T) {
	got := deriveContextURL([]string{"dentist", "health"}, "Olive Garden")
	if got != "olive garden" {
		t.Fatalf("expected lowercased location fallback, got %q", got)
	}
}

func TestDeriveContextURLEmptyWhenNothingMatches(t *testing.T) {
	got := deriveContextURL([]string{"dentist"}, "")
	if got != "" {
		t.Fatalf("expected empty context_url, got %q", got)
	}
}

func TestDeriveContextURLSkipsNonGazetteerKeywordsBeforeMatching(t *testing.T) {
	got := deriveContextURL([]string{"shop", "goa"}, "")
	if got != "goa" {
		t.Fatalf("expected second keyword to match gazetteer, got %q", got)
	}
}
