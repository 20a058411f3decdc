package domain

import (
	"strings"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID         int64  `bun:"id,pk,autoincrement" json:"id"`
	Name       string `bun:"name,notnull" json:"name"`
	Email      string `bun:"email,notnull" json:"email,omitempty"`
	IsProvider bool   `bun:"provider,notnull" json:"provider"`
	AvatarID   *int64 `bun:"avatar_id" json:"-"`

	Avatar *File `bun:"rel:belongs-to,join:avatar_id=id" json:"avatar,omitempty"`
}

type File struct {
	bun.BaseModel `bun:"table:files,alias:f"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id"`
	Name string `bun:"name,notnull" json:"-"`
	Path string `bun:"path,notnull" json:"path"`
	URL  string `bun:"-" json:"url"`
}

// ResolveURL fills URL from the public files base URL.
func (f *File) ResolveURL(baseURL string) {
	if f == nil || f.Path == "" {
		return
	}
	f.URL = strings.TrimRight(baseURL, "/") + "/files/" + f.Path
}
