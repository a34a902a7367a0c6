package service

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpSecretSize    = 20
	totpPeriod        = 30
	totpSkew          = 1
	totpQRSize        = 200
	recoveryCodeCount = 8
)

// TOTPService genera secretos TOTP, verifica codigos y maneja codigos de recuperacion.
type TOTPService struct {
	cipher *SecretCipher
	hasher *PasswordHasher
	issuer string
	now    func() time.Time
}

// TOTPSetup es el resultado de iniciar la configuracion de 2FA.
type TOTPSetup struct {
	QRCodeDataURI   string `json:"qrCodeDataUri"`
	OTPAuthURI      string `json:"otpauthUri"`
	EncryptedSecret string `json:"-"`
}

func NewTOTPService(cipher *SecretCipher, hasher *PasswordHasher, issuer string) *TOTPService {
	if issuer == "" {
		issuer = "CandiDash"
	}
	return &TOTPService{
		cipher: cipher,
		hasher: hasher,
		issuer: issuer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *TOTPService) GenerateSetup(accountName string) (TOTPSetup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return TOTPSetup{}, fmt.Errorf("generate totp key: %w", err)
	}

	img, err := key.Image(totpQRSize, totpQRSize)
	if err != nil {
		return TOTPSetup{}, fmt.Errorf("totp qr image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return TOTPSetup{}, fmt.Errorf("totp qr encode: %w", err)
	}

	encrypted, err := s.cipher.Encrypt(key.Secret())
	if err != nil {
		return TOTPSetup{}, fmt.Errorf("encrypt totp secret: %w", err)
	}

	return TOTPSetup{
		QRCodeDataURI:   "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		OTPAuthURI:      key.URL(),
		EncryptedSecret: encrypted,
	}, nil
}

// Verify descifra el secreto y acepta codigos con un paso de tolerancia.
func (s *TOTPService) Verify(encryptedSecret, code string) (bool, error) {
	secret, err := s.cipher.Decrypt(encryptedSecret)
	if err != nil {
		return false, err
	}
	valid, err := totp.ValidateCustom(code, secret, s.now(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, nil
	}
	return valid, nil
}

// GenerateRecoveryCodes devuelve codigos con formato xxxx-xxxx-xxxx.
func (s *TOTPService) GenerateRecoveryCodes() ([]string, error) {
	codes := make([]string, 0, recoveryCodeCount)
	for i := 0; i < recoveryCodeCount; i++ {
		raw := make([]byte, 6)
		if _, err := rand.Read(raw); err != nil {
			return nil, err
		}
		h := hex.EncodeToString(raw)
		codes = append(codes, h[0:4]+"-"+h[4:8]+"-"+h[8:12])
	}
	return codes, nil
}

func (s *TOTPService) HashRecoveryCodes(codes []string) ([]string, error) {
	hashes := make([]string, 0, len(codes))
	for _, code := range codes {
		hash, err := s.hasher.Hash(code)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	return hashes, nil
}

// MatchRecoveryCode devuelve el indice del primer hash que coincide o -1.
func (s *TOTPService) MatchRecoveryCode(hashes []string, code string) int {
	for i, hash := range hashes {
		if ok, _ := s.hasher.Verify(hash, code); ok {
			return i
		}
	}
	return -1
}
