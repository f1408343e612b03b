package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// parseSignatureHeader splits "t=123,v1=abc,v1=def" into the timestamp and
// the v1 signatures.
func parseSignatureHeader(h string) (ts string, sigs []string) {
	for _, part := range strings.Split(h, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	return ts, sigs
}

func hmacHex(secret, msg []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

// verifyTimestampedHMAC checks a "t=...,v1=..." header against
// HMAC-SHA256(secret, t + sep + body).  A zero tolerance disables the
// timestamp window.
func verifyTimestampedHMAC(header, secret, sep string, body []byte, tolerance time.Duration, now time.Time) bool {
	ts, sigs := parseSignatureHeader(header)
	if ts == "" || len(sigs) == 0 || secret == "" {
		return false
	}
	if tolerance > 0 {
		sec, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return false
		}
		if d := now.Sub(time.Unix(sec, 0)); d > tolerance || d < -tolerance {
			return false
		}
	}
	msg := make([]byte, 0, len(ts)+len(sep)+len(body))
	msg = append(msg, ts...)
	msg = append(msg, sep...)
	msg = append(msg, body...)
	want := hmacHex([]byte(secret), msg)
	for _, s := range sigs {
		if hmac.Equal([]byte(want), []byte(s)) {
			return true
		}
	}
	return false
}

// signTimestampedHMAC builds a header accepted by verifyTimestampedHMAC.
func signTimestampedHMAC(secret, sep string, body []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	msg := append([]byte(ts+sep), body...)
	return "t=" + ts + ",v1=" + hmacHex([]byte(secret), msg)
}
