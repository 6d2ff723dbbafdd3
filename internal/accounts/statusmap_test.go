package accounts

import "testing"

func TestMapProviderStatus(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"OK", StatusActive},
		{"CONNECTED", StatusActive},
		{"connecting", StatusConnecting},
		{"SYNC_SUCCESS", StatusConnecting},
		{"CREDENTIALS", StatusCredentialsExpired},
		{"DISCONNECTED", StatusCredentialsExpired},
		{"CHECKPOINT", StatusCredentialsExpired},
		{"CAPTCHA", StatusCredentialsExpired},
		{"STOPPED", StatusStopped},
		{"DELETED", StatusInactive},
		{"ERROR", StatusError},
		// Unknown tokens default to active so new gateway tokens never
		// quarantine a working account.
		{"SOME_NEW_TOKEN", StatusActive},
		{"", StatusActive},
	}

	for _, tt := range tests {
		if got := MapProviderStatus(tt.token, nil); got != tt.want {
			t.Fatalf("MapProviderStatus(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}

func TestNeedsReconnectFor(t *testing.T) {
	if !NeedsReconnectFor(StatusCredentialsExpired) {
		t.Fatal("credentials_expired must need reconnect")
	}
	if NeedsReconnectFor(StatusActive) || NeedsReconnectFor(StatusStopped) {
		t.Fatal("only credentials_expired needs reconnect")
	}
}
