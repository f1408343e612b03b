package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerifyTimestampedHMAC(t *testing.T) {
	now := time.Unix(1700000000, 0)
	body := []byte(`{"id":"evt_1"}`)
	header := signTimestampedHMAC("whsec", ".", body, now)

	tests := []struct {
		name      string
		header    string
		secret    string
		body      []byte
		tolerance time.Duration
		at        time.Time
		want      bool
	}{
		{name: "valid", header: header, secret: "whsec", body: body, tolerance: time.Minute, at: now, want: true},
		{name: "wrong secret", header: header, secret: "other", body: body, tolerance: time.Minute, at: now},
		{name: "tampered body", header: header, secret: "whsec", body: []byte(`{"id":"evt_2"}`), tolerance: time.Minute, at: now},
		{name: "too old", header: header, secret: "whsec", body: body, tolerance: time.Minute, at: now.Add(2 * time.Minute)},
		{name: "no tolerance ignores age", header: header, secret: "whsec", body: body, at: now.Add(time.Hour), want: true},
		{name: "empty header", header: "", secret: "whsec", body: body, at: now},
		{name: "missing v1", header: "t=1700000000", secret: "whsec", body: body, at: now},
		{name: "empty secret", header: header, secret: "", body: body, at: now},
		{name: "second signature matches", header: header[:len("t=1700000000")] + ",v1=deadbeef," + header[len("t=1700000000,"):], secret: "whsec", body: body, tolerance: time.Minute, at: now, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, verifyTimestampedHMAC(tt.header, tt.secret, ".", tt.body, tt.tolerance, tt.at))
		})
	}
}

func TestParseSignatureHeader(t *testing.T) {
	ts, sigs := parseSignatureHeader("t=42, v1=aa ,v0=zz,v1=bb,junk")
	assert.Equal(t, "42", ts)
	assert.Equal(t, []string{"aa", "bb"}, sigs)
}
