package migrations

import "embed"

// Files 内嵌会话归档所需的全部 SQL 迁移。
//
//go:embed *.sql
var Files embed.FS
