package grocery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_JoinPhones(t *testing.T) {
	testCases := []struct {
		name   string
		phones []string
		expect string
	}{
		{name: "none", phones: []string{}, expect: ""},
		{name: "one", phones: []string{"555-0100"}, expect: "555-0100"},
		{name: "several", phones: []string{"555-0100", "555-0101"}, expect: "555-0100, 555-0101"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			assert.Equal(tc.expect, JoinPhones(tc.phones))
		})
	}
}

func Test_SplitPhones(t *testing.T) {
	testCases := []struct {
		name   string
		raw    string
		expect []string
	}{
		{name: "empty", raw: "", expect: []string{}},
		{name: "single legacy value", raw: "555-0000", expect: []string{"555-0000"}},
		{name: "several", raw: "555-0100, 555-0101", expect: []string{"555-0100", "555-0101"}},
		{name: "no space after comma", raw: "555-0100,555-0101", expect: []string{"555-0100", "555-0101"}},
		{name: "empty segments dropped", raw: "555-0100, , 555-0101,", expect: []string{"555-0100", "555-0101"}},
		{name: "only separators kept raw", raw: ", ", expect: []string{", "}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			assert.Equal(tc.expect, SplitPhones(tc.raw))
		})
	}
}

func Test_Phones_roundTrip(t *testing.T) {
	assert := assert.New(t)

	phones := []string{"+1 555 0100", "555-0101", "(555) 0102"}

	assert.Equal(phones, SplitPhones(JoinPhones(phones)))
}
