package group

import (
	"fmt"
	"time"

	"backend-groupride/internal/shared/clock"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultInviteTTL = 2 * time.Hour

// InviteClaims bind an invite to one group session and one peer. They grant
// a seat in this session only and say nothing about who the peer is.
type InviteClaims struct {
	SessionID string `json:"sid"`
	PeerID    PeerID `json:"peer"`
	jwt.RegisteredClaims
}

type Invites struct {
	secret    []byte
	sessionID string
	ttl       time.Duration
	clock     clock.Clock
}

func NewInvites(secret, sessionID string, ttl time.Duration, clk clock.Clock) *Invites {
	if ttl <= 0 {
		ttl = DefaultInviteTTL
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Invites{secret: []byte(secret), sessionID: sessionID, ttl: ttl, clock: clk}
}

// Enabled reports whether invites are enforced. Without a secret anyone who
// can reach the host may join.
func (i *Invites) Enabled() bool {
	return i != nil && len(i.secret) > 0
}

func (i *Invites) Issue(peer PeerID) (string, error) {
	now := i.clock.Now()
	claims := InviteClaims{
		SessionID: i.sessionID,
		PeerID:    peer,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify checks that token admits peer to this session.
func (i *Invites) Verify(token string, peer PeerID) error {
	parsed, err := jwt.ParseWithClaims(token, &InviteClaims{}, func(_ *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.clock.Now))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInvite, err)
	}
	claims, ok := parsed.Claims.(*InviteClaims)
	if !ok || !parsed.Valid {
		return ErrInvalidInvite
	}
	if claims.SessionID != i.sessionID {
		return fmt.Errorf("%w: wrong session", ErrInvalidInvite)
	}
	if claims.PeerID != "" && claims.PeerID != peer {
		return fmt.Errorf("%w: issued to another peer", ErrInvalidInvite)
	}
	return nil
}
