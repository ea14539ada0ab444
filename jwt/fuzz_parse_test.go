package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"
	"time"
)

// FuzzParseAccess feeds arbitrary strings to both signing modes. Accepted
// tokens must carry an account and session id.
func FuzzParseAccess(f *testing.F) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		f.Fatal(err)
	}
	edMgr, err := NewManager(Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "authcore-fuzz",
		RequireIAT:    true,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub},
	})
	if err != nil {
		f.Fatal(err)
	}
	hsMgr, err := NewManager(Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte(strings.Repeat("k", 32)),
		Issuer:        "authcore-fuzz",
	})
	if err != nil {
		f.Fatal(err)
	}

	for _, m := range []*Manager{edMgr, hsMgr} {
		tok, _, err := m.CreateAccess(Subject{AccountID: "acct-1", SessionID: "sess-1", Role: "admin"})
		if err != nil {
			f.Fatal(err)
		}
		f.Add(tok)
		// flip the last signature byte
		f.Add(tok[:len(tok)-1] + "A")
	}
	f.Add("")
	f.Add("not.a.jwt")
	f.Add("eyJhbGciOiJub25lIn0.eyJ1aWQiOiJ0ZXN0In0.")

	f.Fuzz(func(t *testing.T, input string) {
		for _, m := range []*Manager{edMgr, hsMgr} {
			claims, err := m.ParseAccess(input)
			if err != nil {
				continue
			}
			if claims == nil || claims.UID == "" || claims.SID == "" {
				t.Fatalf("accepted token without subject: %+v", claims)
			}
		}
	})
}
