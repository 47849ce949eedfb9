package devicekey

import (
	"context"
	"errors"
	"testing"

	"zt-totp/backend/internal/devicekey/domain"
	rpdomain "zt-totp/backend/internal/relyingparty/domain"
)

type memKeyRepo struct {
	keys map[string]*domain.DeviceKey // deviceID + "/" + rpInternalID
}

func (r *memKeyRepo) Create(ctx context.Context, k *domain.DeviceKey) error {
	r.keys[k.DeviceID+"/"+k.RPID] = k
	return nil
}

func (r *memKeyRepo) GetByID(ctx context.Context, id string) (*domain.DeviceKey, error) {
	for _, k := range r.keys {
		if k.ID == id {
			return k, nil
		}
	}
	return nil, nil
}

func (r *memKeyRepo) GetByDeviceAndRP(ctx context.Context, deviceID, rpID string) (*domain.DeviceKey, error) {
	return r.keys[deviceID+"/"+rpID], nil
}

func (r *memKeyRepo) UpsertByDeviceAndRP(ctx context.Context, deviceID, rpID, keyType, publicKey string) (*domain.DeviceKey, error) {
	k := r.keys[deviceID+"/"+rpID]
	if k == nil {
		k = &domain.DeviceKey{ID: "key-" + deviceID, DeviceID: deviceID, RPID: rpID}
		r.keys[deviceID+"/"+rpID] = k
	}
	k.KeyType = keyType
	k.PublicKey = publicKey
	return k, nil
}

type memRPRepo struct {
	byExternal map[string]*rpdomain.RelyingParty
}

func (r *memRPRepo) GetByExternalID(ctx context.Context, rpID string) (*rpdomain.RelyingParty, error) {
	return r.byExternal[rpID], nil
}

func newRotateService() (*Service, *memKeyRepo) {
	keys := &memKeyRepo{keys: map[string]*domain.DeviceKey{}}
	rps := &memRPRepo{byExternal: map[string]*rpdomain.RelyingParty{
		"acme": {ID: "rp-uuid-1", RPID: "acme", DisplayName: "Acme"},
	}}
	return NewService(keys, rps), keys
}

func TestRotate_CreatesBinding(t *testing.T) {
	svc, keys := newRotateService()
	k, err := svc.Rotate(context.Background(), "device-1", "acme", "ed25519", "cHVibGljLWtleQ")
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if k.RPID != "rp-uuid-1" {
		t.Errorf("key bound to rp %q, want the internal id rp-uuid-1", k.RPID)
	}
	if keys.keys["device-1/rp-uuid-1"] == nil {
		t.Fatal("key not persisted under (device, rp)")
	}
}

func TestRotate_ReplacesExistingKey(t *testing.T) {
	svc, keys := newRotateService()
	if _, err := svc.Rotate(context.Background(), "device-1", "acme", "ed25519", "b2xkLWtleQ"); err != nil {
		t.Fatalf("first Rotate: %v", err)
	}
	if _, err := svc.Rotate(context.Background(), "device-1", "acme", "p256", "bmV3LWtleQ"); err != nil {
		t.Fatalf("second Rotate: %v", err)
	}
	if len(keys.keys) != 1 {
		t.Fatalf("got %d keys, want 1 (rotation replaces in place)", len(keys.keys))
	}
	k := keys.keys["device-1/rp-uuid-1"]
	if k.KeyType != "p256" || k.PublicKey != "bmV3LWtleQ" {
		t.Errorf("key after rotation = %q/%q", k.KeyType, k.PublicKey)
	}
}

func TestRotate_UnknownRP(t *testing.T) {
	svc, _ := newRotateService()
	if _, err := svc.Rotate(context.Background(), "device-1", "nobody", "ed25519", "a2V5"); !errors.Is(err, ErrRPNotFound) {
		t.Fatalf("Rotate err = %v, want ErrRPNotFound", err)
	}
}

func TestRotate_InvalidInput(t *testing.T) {
	svc, _ := newRotateService()
	cases := []struct{ deviceID, keyType, publicKey string }{
		{"", "ed25519", "a2V5"},
		{"device-1", "", "a2V5"},
		{"device-1", "ed25519", ""},
	}
	for _, tc := range cases {
		if _, err := svc.Rotate(context.Background(), tc.deviceID, "acme", tc.keyType, tc.publicKey); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Rotate(%q,%q,%q) err = %v, want ErrInvalidKey", tc.deviceID, tc.keyType, tc.publicKey, err)
		}
	}
}
