package ticketnumber

import (
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/jobticket-service/internal/domain"
)

var numberPattern = regexp.MustCompile(`^[0-9A-F]{4}(-[0-9A-F]{4}){3}$`)

func TestGenerateIsUniqueAndWellFormed(t *testing.T) {
	g, err := NewGenerator(1)
	require.NoError(t, err)

	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		n := g.Generate()
		require.Regexp(t, numberPattern, n)
		_, dup := seen[n]
		require.False(t, dup, "duplicate number %s", n)
		seen[n] = struct{}{}
	}
}

func TestGenerateConcurrent(t *testing.T) {
	g, err := NewGenerator(2)
	require.NoError(t, err)

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		seen = map[string]struct{}{}
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				n := g.Generate()
				mu.Lock()
				seen[n] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 4000)
}

func TestGenerateLabeled(t *testing.T) {
	g, err := NewGenerator(3)
	require.NoError(t, err)

	n := g.GenerateLabeled(domain.NumberLabel{Domain: "lib", Tag: "a1"})
	assert.Regexp(t, `^LIB\.A1/[0-9A-F]{4}(-[0-9A-F]{4}){3}$`, n)

	assert.Equal(t, "", Prefix(domain.NumberLabel{Use: "  "}))
	assert.Equal(t, "SCH.COPY.X", Prefix(domain.NumberLabel{Domain: "sch", Use: "copy", Tag: "x"}))
}

func TestUnshuffledNumbersAreSequential(t *testing.T) {
	g, err := NewGenerator(4)
	require.NoError(t, err)
	g.shuffle = func(int, func(i, j int)) {}

	first := g.Generate()
	second := g.Generate()
	assert.Regexp(t, numberPattern, first)
	assert.Less(t, first, second)
}

func TestReopened(t *testing.T) {
	assert.Equal(t, "AB12-CD34-EF56-0789-R", Reopened("AB12-CD34-EF56-0789"))
	assert.Equal(t, "AB12-CD34-EF56-0789-R", Reopened("AB12-CD34-EF56-0789-R"))
	assert.True(t, IsReopened("X-R"))
	assert.False(t, IsReopened("AB12-CD34-EF56-0789"))
	assert.False(t, numberPattern.MatchString(Reopened("AB12-CD34-EF56-0789")))
}

func TestNewGeneratorRejectsBadNode(t *testing.T) {
	_, err := NewGenerator(-1)
	assert.Error(t, err)
}
