package bot

import "testing"

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "reads token from environment", token: "bot-token-123"},
		{name: "rejects missing token", token: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DISCORD_TOKEN", tt.token)

			cfg, err := LoadConfig()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.DiscordToken != tt.token {
				t.Errorf("expected token %q, got %q", tt.token, cfg.DiscordToken)
			}
		})
	}
}
