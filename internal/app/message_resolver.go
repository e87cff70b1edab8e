// internal/app/message_resolver.go
package app

import (
	"context"
	"errors"
	"sort"
	"strings"

	"hifz_attendance_notifier/internal/domain/preset"

	"github.com/sirupsen/logrus"
)

// Placeholder names understood by the default templates.
const (
	PlaceholderStudentName = "student_name"
	PlaceholderClassName   = "class_name"
	PlaceholderSurah       = "surah"
	PlaceholderVerses      = "verses"
)

var defaultTemplates = map[preset.Type]string{
	preset.TypeLessonAbsent:     "Assalamu alaikum. {{student_name}} was absent from {{class_name}} today. Please let the teacher know if everything is alright.",
	preset.TypeLessonFail:       "Assalamu alaikum. {{student_name}} did not pass today's recitation of {{surah}} ({{verses}}). Please help them review at home.",
	preset.TypeLessonRepeat:     "Assalamu alaikum. {{student_name}} will repeat {{surah}} ({{verses}}) in the next {{class_name}} session.",
	preset.TypePaymentFailed:    "Assalamu alaikum. The tuition payment for {{student_name}} could not be processed. Please update your payment details.",
	preset.TypeHomeworkAssigned: "Assalamu alaikum. New homework for {{student_name}}: {{surah}} ({{verses}}).",
	preset.TypeLessonPass:       "Assalamu alaikum. {{student_name}} passed today's recitation of {{surah}} ({{verses}}). Masha'Allah!",
}

// DefaultTemplate returns the built-in message for t, used when no preset matches.
func DefaultTemplate(t preset.Type) string {
	return defaultTemplates[t]
}

// MessageResolver turns a notification type and escalation level into message text.
type MessageResolver struct {
	presets preset.Repository
	logger  *logrus.Entry
}

func NewMessageResolver(presets preset.Repository, logger *logrus.Entry) *MessageResolver {
	return &MessageResolver{
		presets: presets,
		logger:  logger.WithField("component", "message_resolver"),
	}
}

// ResolveMessage picks the preset for (t, level, isAdult), falling back to the
// built-in template, and substitutes the {{key}} tokens found in vars.
// Tokens without a value in vars are left as they are.
func (r *MessageResolver) ResolveMessage(ctx context.Context, t preset.Type, level int, isAdult bool, vars map[string]string) string {
	logCtx := r.logger.WithFields(logrus.Fields{
		"type":     t,
		"level":    level,
		"is_adult": isAdult,
	})

	template := DefaultTemplate(t)
	p, err := r.presets.FindFirst(ctx, t, level, isAdult)
	switch {
	case err == nil:
		template = p.Message
		logCtx.WithField("preset_id", p.ID).Debug("Using notification preset")
	case errors.Is(err, preset.ErrNotFound):
		logCtx.Debug("No preset found, using default template")
	default:
		// Wording must never block marking attendance.
		logCtx.WithError(err).Warn("Preset lookup failed, using default template")
	}

	return Substitute(template, vars)
}

// Substitute replaces every {{key}} in template with vars[key] in a single pass.
func Substitute(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
