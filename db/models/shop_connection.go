package models

// ShopConnection is one installed commerce-platform connection. The access
// token is stored encrypted (AES-GCM, nonce-prefixed); plaintext tokens
// never touch the database.
type ShopConnection struct {
	ID              uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	OwnerID         string `gorm:"column:owner_id;type:text;not null;index:idx_shop_conn_owner"`
	WorkspaceID     string `gorm:"column:workspace_id;type:text;index:idx_shop_conn_workspace"`
	ShopDomain      string `gorm:"column:shop_domain;type:text;not null"`
	TokenCiphertext []byte `gorm:"column:token_ciphertext;not null"`
	InstalledAt     int64  `gorm:"column:installed_at;not null"`
	UninstalledAt   *int64 `gorm:"column:uninstalled_at"`
}

func (ShopConnection) TableName() string { return "shop_connections" }
