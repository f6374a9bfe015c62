package party

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contact(kind ContactKind, preferred, sms bool, purposes ...string) Contact {
	return Contact{
		ID:        uuid.New(),
		Kind:      kind,
		Preferred: preferred,
		SMS:       sms,
		Purposes:  purposes,
	}
}

func TestSortContacts(t *testing.T) {
	plain := contact(ContactEmail, false, false)
	preferred := contact(ContactPhone, true, true)
	tagged := contact(ContactEmail, false, false, PurposeReminder)

	sorted := SortContacts([]Contact{plain, preferred, tagged})
	require.Len(t, sorted, 3)
	assert.Equal(t, tagged.ID, sorted[0].ID)
	assert.Equal(t, preferred.ID, sorted[1].ID)
	assert.Equal(t, plain.ID, sorted[2].ID)
}

func TestSortContactsStableTieBreak(t *testing.T) {
	a := contact(ContactEmail, false, false)
	b := contact(ContactEmail, false, false)
	want := []Contact{a, b}
	if b.ID.String() < a.ID.String() {
		want = []Contact{b, a}
	}

	sorted := SortContacts([]Contact{a, b})
	assert.Equal(t, want[0].ID, sorted[0].ID)
	assert.Equal(t, want[1].ID, sorted[1].ID)

	// Re-sorting a different input order yields the same result.
	sorted = SortContacts([]Contact{b, a})
	assert.Equal(t, want[0].ID, sorted[0].ID)
}

func TestFindPrefersEarlierContacts(t *testing.T) {
	first := contact(ContactEmail, false, false, PurposeReminder)
	second := contact(ContactEmail, true, false)
	sorted := SortContacts([]Contact{second, first})

	got := Find(sorted, KindMatcher(ContactEmail))
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)

	assert.Nil(t, Find(sorted, KindMatcher(ContactLocation)))
}

func TestPurposeMatcher(t *testing.T) {
	tagged := contact(ContactEmail, false, false, PurposeReminder)
	untagged := contact(ContactEmail, false, false)

	exact := PurposeMatcher(ContactEmail, PurposeReminder, true)
	assert.True(t, exact(tagged))
	assert.False(t, exact(untagged))

	loose := PurposeMatcher(ContactEmail, PurposeReminder, false)
	assert.True(t, loose(tagged))
	assert.True(t, loose(untagged))
	assert.False(t, loose(contact(ContactPhone, false, true)))
}

func TestSMSMatcher(t *testing.T) {
	sms := contact(ContactPhone, false, true)
	voiceOnly := contact(ContactPhone, false, false)
	taggedSMS := contact(ContactPhone, false, true, PurposeReminder)

	exact := SMSMatcher(PurposeReminder, true)
	assert.True(t, exact(taggedSMS))
	assert.False(t, exact(sms))

	loose := SMSMatcher(PurposeReminder, false)
	assert.True(t, loose(sms))
	assert.False(t, loose(voiceOnly))
}

func TestFindAll(t *testing.T) {
	a := contact(ContactEmail, false, false, PurposeReminder)
	b := contact(ContactEmail, false, false)
	c := contact(ContactPhone, false, true)

	emails := FindAll([]Contact{a, b, c}, KindMatcher(ContactEmail))
	require.Len(t, emails, 2)
	assert.Equal(t, a.ID, emails[0].ID)
	assert.Equal(t, b.ID, emails[1].ID)
	assert.Empty(t, FindAll([]Contact{a, b, c}, KindMatcher(ContactLocation)))
}
