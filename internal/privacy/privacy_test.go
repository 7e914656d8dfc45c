package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classchat-service/internal/auth"
	"classchat-service/internal/models"
)

func strptr(s string) *string { return &s }

func restrictedMessage(target string) models.ChatMessage {
	return models.ChatMessage{
		ID:              "m1",
		ClassID:         "class-1",
		SenderType:      models.MemberTypeUser,
		SenderID:        "teacher-1",
		SenderRole:      models.RoleTeacher,
		Type:            models.MessageTypeExamResult,
		Content:         "midterm results",
		TargetStudentID: strptr(target),
	}
}

func TestVisibleUnrestrictedMessage(t *testing.T) {
	msg := models.ChatMessage{
		SenderType: models.MemberTypeStudent,
		SenderID:   "student-1",
		Type:       models.MessageTypeText,
		Content:    "hello",
	}

	viewers := []auth.Identity{
		{Kind: models.MemberTypeStudent, ID: "student-2", Role: models.RoleStudent},
		{Kind: models.MemberTypeParent, ID: "parent-1", Role: models.RoleParent},
		{Kind: models.MemberTypeUser, ID: "rec-1", Role: models.RoleReceptionist},
	}
	for _, viewer := range viewers {
		assert.True(t, Visible(viewer, msg))
	}
}

func TestVisibleTargetedGradeWithoutTargetIsUnrestricted(t *testing.T) {
	// A grade with no target student behaves like a normal message.
	msg := restrictedMessage("")
	msg.TargetStudentID = nil
	other := auth.Identity{Kind: models.MemberTypeStudent, ID: "student-9", Role: models.RoleStudent}
	assert.True(t, Visible(other, msg))
}

func TestVisibleTargetedTextIsUnrestricted(t *testing.T) {
	msg := restrictedMessage("student-p")
	msg.Type = models.MessageTypeText
	other := auth.Identity{Kind: models.MemberTypeStudent, ID: "student-9", Role: models.RoleStudent}
	assert.True(t, Visible(other, msg))
}

func TestVisibleRestrictedMessage(t *testing.T) {
	msg := restrictedMessage("student-p")

	sender := auth.Identity{Kind: models.MemberTypeUser, ID: "teacher-1", Role: models.RoleTeacher}
	admin := auth.Identity{Kind: models.MemberTypeUser, ID: "admin-1", Role: models.RoleAdmin}
	otherTeacher := auth.Identity{Kind: models.MemberTypeUser, ID: "teacher-2", Role: models.RoleTeacher}
	targetStudent := auth.Identity{Kind: models.MemberTypeStudent, ID: "student-p", Role: models.RoleStudent}
	targetParent := auth.Identity{Kind: models.MemberTypeParent, ID: "parent-p", Role: models.RoleParent, ChildIDs: []string{"student-p"}}

	assert.True(t, Visible(sender, msg))
	assert.True(t, Visible(admin, msg))
	assert.True(t, Visible(otherTeacher, msg))
	assert.True(t, Visible(targetStudent, msg))
	assert.True(t, Visible(targetParent, msg))

	otherStudent := auth.Identity{Kind: models.MemberTypeStudent, ID: "student-q", Role: models.RoleStudent}
	otherParent := auth.Identity{Kind: models.MemberTypeParent, ID: "parent-q", Role: models.RoleParent, ChildIDs: []string{"student-q"}}
	receptionist := auth.Identity{Kind: models.MemberTypeUser, ID: "rec-1", Role: models.RoleReceptionist}

	assert.False(t, Visible(otherStudent, msg))
	assert.False(t, Visible(otherParent, msg))
	assert.False(t, Visible(receptionist, msg))
}

func TestVisibleSenderMatchRequiresKind(t *testing.T) {
	// A student whose id collides with the sender's staff id must not see the
	// restricted message.
	msg := restrictedMessage("student-p")
	impostor := auth.Identity{Kind: models.MemberTypeStudent, ID: "teacher-1", Role: models.RoleStudent}
	assert.False(t, Visible(impostor, msg))
}

func TestFilterVisiblePreservesOrder(t *testing.T) {
	open := models.ChatMessage{ID: "a", Type: models.MessageTypeText}
	hidden := restrictedMessage("student-p")
	hidden.ID = "b"
	open2 := models.ChatMessage{ID: "c", Type: models.MessageTypeText}

	viewer := auth.Identity{Kind: models.MemberTypeStudent, ID: "student-q", Role: models.RoleStudent}
	out := FilterVisible(viewer, []models.ChatMessage{open, hidden, open2})

	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "c", out[1].ID)
}
