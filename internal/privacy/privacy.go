// Package privacy holds the single visibility predicate applied to
// restricted messages. Live broadcast, history pagination and room previews
// all call Visible so the three paths cannot drift apart.
package privacy

import (
	"classchat-service/internal/auth"
	"classchat-service/internal/models"
)

// Visible reports whether the viewer may see the message.
//
// Unrestricted messages are visible to every room occupant. A restricted
// message (target student set, kind exam-result or grade) is visible to the
// original sender, staff with the admin or teacher role, the target student,
// and parents whose linked children include the target student.
func Visible(viewer auth.Identity, msg models.ChatMessage) bool {
	if !msg.Restricted() {
		return true
	}

	// Sender match requires both id and kind so a colliding id from another
	// population cannot unlock the message.
	if viewer.ID == msg.SenderID && viewer.Kind == msg.SenderType {
		return true
	}
	if viewer.Role == models.RoleAdmin || viewer.Role == models.RoleTeacher {
		return true
	}

	target := *msg.TargetStudentID
	switch viewer.Kind {
	case models.MemberTypeStudent:
		return viewer.ID == target
	case models.MemberTypeParent:
		return viewer.HasChild(target)
	}
	return false
}

// FilterVisible returns the subset of messages the viewer may see, preserving
// order.
func FilterVisible(viewer auth.Identity, msgs []models.ChatMessage) []models.ChatMessage {
	visible := make([]models.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if Visible(viewer, m) {
			visible = append(visible, m)
		}
	}
	return visible
}
