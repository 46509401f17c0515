// Package credentials resolves and decrypts a merchant's commerce-platform
// API credentials. Resolution is fail-closed: a merchant without a usable
// connection fails the whole batch, there is no anonymous fallback.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/replyloop/replyloop/db/models"
)

var (
	ErrCredentialsMissing = errors.New("no commerce platform connection for merchant")
	ErrDecryptionFailed   = errors.New("could not decrypt stored access token")
)

// Shop is a decrypted credential pair. Short-lived: held in memory for one
// execution batch only, never persisted in plaintext.
type Shop struct {
	Domain      string
	AccessToken string
}

type Resolver struct {
	DB     *gorm.DB
	Secret string
}

func NewResolver(db *gorm.DB, secret string) *Resolver {
	return &Resolver{DB: db, Secret: secret}
}

// Resolve returns the decrypted credentials for the most recently installed,
// non-uninstalled connection in scope. Workspace scope wins over the
// individual owner scope when both identifiers are supplied.
func (r *Resolver) Resolve(ctx context.Context, ownerID, workspaceID string) (Shop, error) {
	if r == nil || r.DB == nil {
		return Shop{}, fmt.Errorf("credentials resolver is not configured")
	}
	ownerID = strings.TrimSpace(ownerID)
	workspaceID = strings.TrimSpace(workspaceID)
	if ownerID == "" && workspaceID == "" {
		return Shop{}, fmt.Errorf("%w: no merchant identifier", ErrCredentialsMissing)
	}

	var row models.ShopConnection
	found := false
	if workspaceID != "" {
		ok, err := r.latest(ctx, "workspace_id = ?", workspaceID, &row)
		if err != nil {
			return Shop{}, err
		}
		found = ok
	}
	if !found && ownerID != "" {
		ok, err := r.latest(ctx, "owner_id = ?", ownerID, &row)
		if err != nil {
			return Shop{}, err
		}
		found = ok
	}
	if !found {
		return Shop{}, ErrCredentialsMissing
	}

	token, err := Decrypt(r.Secret, row.TokenCiphertext)
	if err != nil {
		return Shop{}, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return Shop{Domain: row.ShopDomain, AccessToken: token}, nil
}

func (r *Resolver) latest(ctx context.Context, cond string, arg string, out *models.ShopConnection) (bool, error) {
	err := r.DB.WithContext(ctx).
		Where(cond, arg).
		Where("uninstalled_at IS NULL").
		Order("installed_at DESC").
		First(out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Store encrypts and persists a new connection for a merchant. Used by the
// install flow and the connect CLI command.
func (r *Resolver) Store(ctx context.Context, ownerID, workspaceID, shopDomain, accessToken string) error {
	if r == nil || r.DB == nil {
		return fmt.Errorf("credentials resolver is not configured")
	}
	shopDomain = strings.TrimSpace(shopDomain)
	if shopDomain == "" {
		return fmt.Errorf("missing shop domain")
	}
	if strings.TrimSpace(accessToken) == "" {
		return fmt.Errorf("missing access token")
	}
	ct, err := Encrypt(r.Secret, accessToken)
	if err != nil {
		return err
	}
	row := models.ShopConnection{
		OwnerID:         strings.TrimSpace(ownerID),
		WorkspaceID:     strings.TrimSpace(workspaceID),
		ShopDomain:      shopDomain,
		TokenCiphertext: ct,
		InstalledAt:     time.Now().Unix(),
	}
	return r.DB.WithContext(ctx).Create(&row).Error
}
