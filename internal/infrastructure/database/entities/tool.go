package entities

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/techmannih/helper-sub007/internal/domain/tool"
)

// Tool represents the database schema for registered HTTP tools
type Tool struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Name            string         `gorm:"type:varchar(128);not null"`
	Slug            string         `gorm:"type:varchar(128);uniqueIndex;not null"`
	Description     string         `gorm:"type:text"`
	Params          datatypes.JSON `gorm:"type:jsonb"`
	Method          string         `gorm:"type:varchar(10);not null"`
	URL             string         `gorm:"type:varchar(2048);not null"`
	AuthToken       *string        `gorm:"type:varchar(512)"`
	AvailableInChat bool           `gorm:"not null;default:true;index"`
}

// TableName specifies the table name for Tool.
func (Tool) TableName() string {
	return "tools"
}

// EtoD converts database entity to domain model
func (t *Tool) EtoD() (*tool.Tool, error) {
	var params []tool.Param
	if len(t.Params) > 0 {
		if err := json.Unmarshal(t.Params, &params); err != nil {
			return nil, fmt.Errorf("decode params for tool %s: %w", t.Slug, err)
		}
	}
	return &tool.Tool{
		ID:              t.ID,
		Name:            t.Name,
		Slug:            t.Slug,
		Description:     t.Description,
		Params:          params,
		Method:          t.Method,
		URL:             t.URL,
		AuthToken:       t.AuthToken,
		AvailableInChat: t.AvailableInChat,
	}, nil
}

// NewSchemaTool creates a database entity from domain model
func NewSchemaTool(t *tool.Tool) (*Tool, error) {
	params, err := json.Marshal(t.Params)
	if err != nil {
		return nil, fmt.Errorf("encode params for tool %s: %w", t.Slug, err)
	}
	return &Tool{
		ID:              t.ID,
		Name:            t.Name,
		Slug:            t.Slug,
		Description:     t.Description,
		Params:          datatypes.JSON(params),
		Method:          t.Method,
		URL:             t.URL,
		AuthToken:       t.AuthToken,
		AvailableInChat: t.AvailableInChat,
	}, nil
}
