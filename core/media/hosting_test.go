package media

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func Test_verifySignature(t *testing.T) {
	payload := []byte(`{"type":"video.asset.ready"}`)
	now := time.Unix(1700000000, 0)
	valid := SignWebhook(payload, "secret", now)

	tests := []struct {
		name    string
		payload []byte
		header  string
		wantErr bool
	}{
		{name: "valid", payload: payload, header: valid},
		{name: "second signature matches", payload: payload, header: valid[:len("t=1700000000")] + ",v1=00ff," + valid[len("t=1700000000,"):]},
		{name: "within tolerance", payload: payload, header: SignWebhook(payload, "secret", now.Add(-4*time.Minute))},
		{name: "stale", payload: payload, header: SignWebhook(payload, "secret", now.Add(-6*time.Minute)), wantErr: true},
		{name: "from the future", payload: payload, header: SignWebhook(payload, "secret", now.Add(6*time.Minute)), wantErr: true},
		{name: "wrong secret", payload: payload, header: SignWebhook(payload, "nope", now), wantErr: true},
		{name: "tampered payload", payload: []byte(`{"type":"video.asset.deleted"}`), header: valid, wantErr: true},
		{name: "empty", payload: payload, header: "", wantErr: true},
		{name: "no signature", payload: payload, header: "t=1700000000", wantErr: true},
		{name: "bad timestamp", payload: payload, header: "t=lol,v1=00", wantErr: true},
		{name: "not hex", payload: payload, header: "t=1700000000,v1=zz", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifySignature(tt.payload, tt.header, "secret", now)
			if tt.wantErr {
				assert.Equal(t, errInvalidSignature, errors.Cause(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
