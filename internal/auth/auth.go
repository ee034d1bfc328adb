package auth

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/alphabot-ai/newsroom/internal/model"
	"github.com/alphabot-ai/newsroom/internal/store"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/sha3"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrChallengeExpired   = errors.New("challenge expired")
	ErrKeyRevoked         = errors.New("key revoked")
	ErrUnsupportedAlg     = errors.New("unsupported alg")
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

const (
	minPasswordLen = 8
	// bcrypt rejects longer input.
	maxPasswordLen = 72
)

// Store is the slice of persistence the auth service uses.
type Store interface {
	store.AuthorStore
	store.AuthStore
}

type Service struct {
	store        Store
	tokenTTL     time.Duration
	challengeTTL time.Duration
}

func NewService(store Store, tokenTTL, challengeTTL time.Duration) *Service {
	return &Service{
		store:        store,
		tokenTTL:     tokenTTL,
		challengeTTL: challengeTTL,
	}
}

type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r Registration) Validate() error {
	if !usernamePattern.MatchString(r.Username) {
		return fmt.Errorf("%w: username must be 1-64 letters, digits, '.', '_' or '-'", ErrInvalidInput)
	}
	if r.Email != "" && !emailPattern.MatchString(r.Email) {
		return fmt.Errorf("%w: email is malformed", ErrInvalidInput)
	}
	if len(r.Password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}
	if len(r.Password) > maxPasswordLen {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, maxPasswordLen)
	}
	return nil
}

// Register creates the author together with its password hash.
func (s *Service) Register(ctx context.Context, reg Registration) (model.Author, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	if err := reg.Validate(); err != nil {
		return model.Author{}, err
	}
	hash, err := HashPassword(reg.Password)
	if err != nil {
		return model.Author{}, err
	}
	author := model.Author{
		Username:     reg.Username,
		Email:        reg.Email,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	id, err := s.store.CreateAuthor(ctx, &author)
	if err != nil {
		return model.Author{}, err
	}
	author.ID = id
	return author, nil
}

// Login exchanges a username and password for a bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (model.Token, model.Author, error) {
	author, err := s.store.GetAuthorByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Token{}, model.Author{}, ErrInvalidCredentials
		}
		return model.Token{}, model.Author{}, err
	}
	if err := CheckPassword(author.PasswordHash, password); err != nil {
		return model.Token{}, model.Author{}, ErrInvalidCredentials
	}
	token, err := s.issueToken(ctx, author.ID, nil)
	if err != nil {
		return model.Token{}, model.Author{}, err
	}
	return token, author, nil
}

func (s *Service) CreateChallenge(ctx context.Context, alg string) (model.Challenge, error) {
	alg = strings.ToLower(strings.TrimSpace(alg))
	if !SupportedAlg(alg) {
		return model.Challenge{}, fmt.Errorf("%w: %s", ErrUnsupportedAlg, alg)
	}
	challenge, err := randomToken(32)
	if err != nil {
		return model.Challenge{}, err
	}
	c := model.Challenge{
		Challenge: challenge,
		Alg:       alg,
		ExpiresAt: time.Now().Add(s.challengeTTL),
	}
	if err := s.store.CreateChallenge(ctx, c); err != nil {
		return model.Challenge{}, err
	}
	return c, nil
}

// consumeSigned redeems a challenge and checks the signature over it.
func (s *Service) consumeSigned(ctx context.Context, alg, publicKey, challenge, signature string) error {
	c, err := s.store.ConsumeChallenge(ctx, challenge)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}
	if time.Now().After(c.ExpiresAt) {
		return ErrChallengeExpired
	}
	if c.Alg != strings.ToLower(alg) {
		return fmt.Errorf("%w: challenge alg mismatch", ErrInvalidCredentials)
	}
	if err := VerifySignature(alg, publicKey, challenge, signature); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return nil
}

// VerifyAndCreateToken logs an author in with a key previously attached
// through AddKey.
func (s *Service) VerifyAndCreateToken(ctx context.Context, alg, publicKey, challenge, signature string) (model.Token, model.Author, error) {
	if err := s.consumeSigned(ctx, alg, publicKey, challenge, signature); err != nil {
		return model.Token{}, model.Author{}, err
	}

	key, err := s.store.FindAuthorKey(ctx, strings.ToLower(alg), publicKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Token{}, model.Author{}, fmt.Errorf("%w: key is not registered", ErrInvalidCredentials)
		}
		return model.Token{}, model.Author{}, err
	}
	if key.RevokedAt != nil {
		return model.Token{}, model.Author{}, ErrKeyRevoked
	}
	author, err := s.store.GetAuthor(ctx, key.AuthorID)
	if err != nil {
		return model.Token{}, model.Author{}, err
	}

	keyID := key.ID
	token, err := s.issueToken(ctx, author.ID, &keyID)
	if err != nil {
		return model.Token{}, model.Author{}, err
	}
	return token, author, nil
}

// AddKey attaches a public key to authorID after checking the caller can
// sign a fresh challenge with it.
func (s *Service) AddKey(ctx context.Context, authorID int64, alg, publicKey, challenge, signature string) (model.AuthorKey, error) {
	if err := s.consumeSigned(ctx, alg, publicKey, challenge, signature); err != nil {
		return model.AuthorKey{}, err
	}
	key := model.AuthorKey{
		AuthorID:  authorID,
		Alg:       strings.ToLower(alg),
		PublicKey: publicKey,
		CreatedAt: time.Now(),
	}
	id, err := s.store.AddAuthorKey(ctx, authorID, &key)
	if err != nil {
		return model.AuthorKey{}, err
	}
	key.ID = id
	return key, nil
}

func (s *Service) RevokeKey(ctx context.Context, authorID, keyID int64) error {
	return s.store.RevokeAuthorKey(ctx, authorID, keyID, time.Now())
}

func (s *Service) Keys(ctx context.Context, authorID int64) ([]model.AuthorKey, error) {
	return s.store.GetAuthorKeys(ctx, authorID)
}

// Authenticate resolves a bearer token to its author.
func (s *Service) Authenticate(ctx context.Context, bearer string) (model.Author, error) {
	token, err := s.store.GetToken(ctx, bearer)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Author{}, ErrInvalidCredentials
		}
		return model.Author{}, err
	}
	if time.Now().After(token.ExpiresAt) {
		return model.Author{}, ErrTokenExpired
	}
	author, err := s.store.GetAuthor(ctx, token.AuthorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Author{}, ErrInvalidCredentials
		}
		return model.Author{}, err
	}
	return author, nil
}

// PurgeExpiredTokens drops tokens past their expiry and reports how many.
func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredTokens(ctx, time.Now())
}

func (s *Service) issueToken(ctx context.Context, authorID int64, keyID *int64) (model.Token, error) {
	value, err := randomToken(32)
	if err != nil {
		return model.Token{}, err
	}
	token := model.Token{
		Token:     value,
		AuthorID:  authorID,
		KeyID:     keyID,
		ExpiresAt: time.Now().Add(s.tokenTTL),
	}
	if err := s.store.CreateToken(ctx, token); err != nil {
		return model.Token{}, err
	}
	return token, nil
}

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func SupportedAlg(alg string) bool {
	switch strings.ToLower(alg) {
	case "ed25519", "secp256k1", "rsa-pss", "rsa-sha256":
		return true
	}
	return false
}

func VerifySignature(alg, publicKey, message, signature string) error {
	switch strings.ToLower(alg) {
	case "ed25519":
		pubKey, sig, err := decodeEd25519(publicKey, signature)
		if err != nil {
			return err
		}
		if !ed25519.Verify(pubKey, []byte(message), sig) {
			return errors.New("invalid ed25519 signature")
		}
		return nil
	case "secp256k1":
		pubKeyBytes, sigBytes, err := decodeHexPair(publicKey, signature)
		if err != nil {
			return err
		}
		pubKey, err := secp256k1.ParsePubKey(pubKeyBytes)
		if err != nil {
			return err
		}
		if len(sigBytes) < 64 {
			return errors.New("invalid secp256k1 signature length")
		}
		r := new(big.Int).SetBytes(sigBytes[:32])
		s := new(big.Int).SetBytes(sigBytes[32:64])
		// Signatures follow the personal_sign convention.
		if !ecdsaVerify(pubKey, ethereumPersonalHash([]byte(message)), r, s) {
			return errors.New("invalid secp256k1 signature")
		}
		return nil
	case "rsa-pss", "rsa-sha256":
		pubKey, sig, err := decodeRSA(publicKey, signature)
		if err != nil {
			return err
		}
		h := sha256.Sum256([]byte(message))
		if strings.ToLower(alg) == "rsa-pss" {
			if err := rsa.VerifyPSS(pubKey, crypto.SHA256, h[:], sig, nil); err != nil {
				return errors.New("invalid rsa-pss signature")
			}
			return nil
		}
		if err := rsa.VerifyPKCS1v15(pubKey, crypto.SHA256, h[:], sig); err != nil {
			return errors.New("invalid rsa signature")
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedAlg, alg)
	}
}

func decodeEd25519(pub, sig string) (ed25519.PublicKey, []byte, error) {
	pubBytes, err := decodeBase64OrHex(pub)
	if err != nil {
		return nil, nil, err
	}
	sigBytes, err := decodeBase64OrHex(sig)
	if err != nil {
		return nil, nil, err
	}
	if len(pubBytes) != ed25519.PublicKeySize {
		return nil, nil, errors.New("invalid ed25519 public key length")
	}
	if len(sigBytes) != ed25519.SignatureSize {
		return nil, nil, errors.New("invalid ed25519 signature length")
	}
	return ed25519.PublicKey(pubBytes), sigBytes, nil
}

func decodeRSA(pub, sig string) (*rsa.PublicKey, []byte, error) {
	pubStr := strings.TrimSpace(pub)
	var der []byte
	if strings.HasPrefix(pubStr, "-----BEGIN") {
		block, _ := pem.Decode([]byte(pubStr))
		if block == nil {
			return nil, nil, errors.New("invalid pem public key")
		}
		der = block.Bytes
	} else {
		b, err := decodeBase64OrHex(pubStr)
		if err != nil {
			return nil, nil, err
		}
		der = b
	}

	var pubKey *rsa.PublicKey
	if parsed, err := x509.ParsePKIXPublicKey(der); err == nil {
		pubKey, _ = parsed.(*rsa.PublicKey)
	}
	if pubKey == nil {
		pk, err := x509.ParsePKCS1PublicKey(der)
		if err != nil {
			return nil, nil, errors.New("unsupported rsa public key")
		}
		pubKey = pk
	}

	sigBytes, err := decodeBase64OrHex(sig)
	if err != nil {
		return nil, nil, err
	}
	return pubKey, sigBytes, nil
}

func decodeHexPair(pub, sig string) ([]byte, []byte, error) {
	pubBytes, err := decodeHex(pub)
	if err != nil {
		return nil, nil, err
	}
	sigBytes, err := decodeHex(sig)
	if err != nil {
		return nil, nil, err
	}
	return pubBytes, sigBytes, nil
}

func decodeBase64OrHex(input string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(input); err == nil {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(input); err == nil {
		return b, nil
	}
	return decodeHex(input)
}

func decodeHex(input string) ([]byte, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(input), "0x")
	return hex.DecodeString(clean)
}

func randomToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func ethereumPersonalHash(msg []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(msg))
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(prefix))
	h.Write(msg)
	return h.Sum(nil)
}

func ecdsaVerify(pubKey *secp256k1.PublicKey, hash []byte, r, s *big.Int) bool {
	return ecdsa.Verify(pubKey.ToECDSA(), hash, r, s)
}
