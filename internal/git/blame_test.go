package git

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	shaA = "1111111111111111111111111111111111111111"
	shaB = "2222222222222222222222222222222222222222"
)

const linePorcelain = shaA + ` 1 1 2
author Alice
author-mail <alice@example.com>
author-time 1400000000
author-tz +0000
committer Alice
committer-mail <alice@example.com>
committer-time 1400000000
committer-tz +0000
summary Add A
boundary
filename src/Old.java
	class A {
` + shaA + ` 2 2
author Alice
author-mail <alice@example.com>
author-time 1400000000
author-tz +0000
committer Alice
committer-mail <alice@example.com>
committer-time 1400000000
committer-tz +0000
summary Add A
boundary
filename src/Old.java
	  int x;
` + shaB + ` 3 3 1
author Bob
author-mail <bob@example.com>
author-time 1500000000
author-tz +0200
committer Bob
committer-mail <bob@example.com>
committer-time 1500000000
committer-tz +0200
summary Rename and extend
previous ` + shaA + ` src/Old.java
filename src/A.java
	}
`

// --porcelain prints commit metadata only the first time a commit appears
const porcelain = shaA + ` 1 1 2
author Alice
author-mail <alice@example.com>
author-time 1400000000
author-tz +0000
summary Add A
filename src/Old.java
	class A {
` + shaA + ` 2 2
	  int x;
` + shaB + ` 3 3 1
author Bob
author-mail <bob@example.com>
author-time 1500000000
author-tz +0200
summary Rename and extend
previous ` + shaA + ` src/Old.java
filename src/A.java
	  int y;
` + shaA + ` 3 4 1
	}
`

func TestParseBlame_LinePorcelain(t *testing.T) {
	lines, err := ParseBlame(linePorcelain)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	assert.Equal(t, BlameLine{
		Commit:     shaA,
		Line:       1,
		OrigLine:   1,
		AuthorMail: "alice@example.com",
		AuthorTime: time.Unix(1400000000, 0).UTC(),
		Filename:   "src/Old.java",
	}, lines[0])
	assert.Equal(t, 2, lines[1].Line)
	assert.Equal(t, "src/Old.java", lines[1].Filename)

	assert.Equal(t, shaB, lines[2].Commit)
	assert.Equal(t, "bob@example.com", lines[2].AuthorMail)
	assert.Equal(t, "src/A.java", lines[2].Filename)
	assert.Equal(t, time.Unix(1500000000, 0).UTC(), lines[2].AuthorTime)
}

func TestParseBlame_Porcelain(t *testing.T) {
	lines, err := ParseBlame(porcelain)
	require.NoError(t, err)
	require.Len(t, lines, 4)

	// second line of the first group inherits metadata and filename
	assert.Equal(t, shaA, lines[1].Commit)
	assert.Equal(t, 2, lines[1].Line)
	assert.Equal(t, "alice@example.com", lines[1].AuthorMail)
	assert.Equal(t, "src/Old.java", lines[1].Filename)

	assert.Equal(t, "src/A.java", lines[2].Filename)

	// commit A seen again after the rename: no headers at all, metadata and
	// filename come from its first group
	assert.Equal(t, 4, lines[3].Line)
	assert.Equal(t, 3, lines[3].OrigLine)
	assert.Equal(t, "alice@example.com", lines[3].AuthorMail)
	assert.Equal(t, time.Unix(1400000000, 0).UTC(), lines[3].AuthorTime)
	assert.Equal(t, "src/Old.java", lines[3].Filename)
}

func TestParseBlame_Empty(t *testing.T) {
	lines, err := ParseBlame("")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestParseBlame_Malformed(t *testing.T) {
	_, err := ParseBlame("not a blame header\n")
	assert.Error(t, err)

	_, err = ParseBlame(shaA + " 1 1 1\nauthor-mail <a@b.c>\n")
	assert.Error(t, err, "entry without content line is truncated output")
}
