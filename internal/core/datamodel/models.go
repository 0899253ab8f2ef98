package datamodel

import (
	"github.com/frahmantamala/redteam-collab/internal/core/datamodel/attachment"
	"github.com/frahmantamala/redteam-collab/internal/core/datamodel/comment"
	"github.com/frahmantamala/redteam-collab/internal/core/datamodel/finding"
	"github.com/frahmantamala/redteam-collab/internal/core/datamodel/message"
	"github.com/frahmantamala/redteam-collab/internal/core/datamodel/report"
	"github.com/frahmantamala/redteam-collab/internal/core/datamodel/user"
)

// Models lists every table in dependency order, for AutoMigrate in the
// sqlite development mode and in tests.
func Models() []interface{} {
	return []interface{}{
		&user.User{},
		&finding.Finding{},
		&comment.Comment{},
		&attachment.Attachment{},
		&report.Report{},
		&message.Message{},
	}
}
