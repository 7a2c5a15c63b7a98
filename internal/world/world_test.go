package world

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/helm.avoid/internal/contact"
	"github.com/banshee-data/helm.avoid/internal/geom"
	"github.com/banshee-data/helm.avoid/internal/nav"
	"github.com/banshee-data/helm.avoid/internal/timeutil"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// ----------------------------------------------------------------------------
// Buffer
// ----------------------------------------------------------------------------

func TestBuffer_GetSet(t *testing.T) {
	t.Parallel()
	b := NewBuffer(timeutil.NewMockClock(epoch))

	_, ok := b.GetDouble("NAV_X")
	assert.False(t, ok)

	b.SetDouble("nav_x", 12.5)
	v, ok := b.GetDouble("NAV_X")
	require.True(t, ok)
	assert.Equal(t, 12.5, v)

	b.SetString("mode", "survey")
	_, ok = b.GetDouble("MODE")
	assert.False(t, ok, "string entries do not read as doubles")
	s, ok := b.GetString("Mode")
	require.True(t, ok)
	assert.Equal(t, "survey", s)

	assert.True(t, b.Delete("mode"))
	assert.False(t, b.Delete("mode"))
	assert.Equal(t, []string{"NAV_X"}, b.Keys())
}

func TestBuffer_AgeAndPrune(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewMockClock(epoch)
	b := NewBuffer(clock)

	b.SetDouble("A", 1)
	clock.Advance(5 * time.Second)
	b.SetDouble("B", 2)
	clock.Advance(2 * time.Second)

	age, ok := b.Age("A")
	require.True(t, ok)
	assert.Equal(t, 7*time.Second, age)
	age, _ = b.Age("B")
	assert.Equal(t, 2*time.Second, age)
	_, ok = b.Age("C")
	assert.False(t, ok)

	assert.Equal(t, 1, b.Prune(3*time.Second))
	assert.Equal(t, []string{"B"}, b.Keys())
}

func TestBuffer_Strings(t *testing.T) {
	t.Parallel()
	b := NewBuffer(nil)
	b.SetString("OBSTACLE_A", "a")
	b.SetString("OBSTACLE_B", "b")
	b.SetString("OTHER", "c")
	b.SetDouble("OBSTACLE_COUNT", 2)

	got := b.Strings("obstacle_")
	assert.Equal(t, map[string]string{"OBSTACLE_A": "a", "OBSTACLE_B": "b"}, got)
}

func TestBuffer_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	b := NewBuffer(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.SetDouble("NAV_X", float64(i*j))
				b.GetDouble("NAV_X")
				b.Strings("OBSTACLE_")
			}
		}(i)
	}
	wg.Wait()
	_, ok := b.GetDouble("NAV_X")
	assert.True(t, ok)
}

func TestSnapshot(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewMockClock(epoch)
	b := NewBuffer(clock)
	b.SetDouble("NAV_X", 1)
	b.SetString("OBSTACLE_ROCK", "pts={0,0:1,0:1,1}")
	clock.Advance(3 * time.Second)

	snap := b.Snapshot()
	b.SetDouble("NAV_X", 2)
	b.Delete("OBSTACLE_ROCK")
	clock.Advance(time.Minute)

	v, ok := snap.GetDouble("nav_x")
	require.True(t, ok)
	assert.Equal(t, 1.0, v, "later writes do not reach a snapshot")
	assert.Equal(t, map[string]string{"OBSTACLE_ROCK": "pts={0,0:1,0:1,1}"}, snap.Strings("obstacle_"))
	age, ok := snap.Age("NAV_X")
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, age, "ages are fixed at the snapshot time")
	_, ok = snap.GetString("NAV_X")
	assert.False(t, ok)
	assert.Equal(t, 2, snap.Len())

	v, _ = b.GetDouble("NAV_X")
	assert.Equal(t, 2.0, v)
}

func TestApplyReport_SharedTimestamp(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewMockClock(epoch)
	b := NewBuffer(clock)
	x, y := 1.0, 2.0
	b.ApplyReport(contact.NodeReport{Name: "alpha", X: &x, Y: &y, Type: "ship"})
	clock.Advance(time.Second)
	y2 := 5.0
	b.ApplyReport(contact.NodeReport{Name: "alpha", Y: &y2})

	snap := b.Snapshot()
	ax, _ := snap.Age("ALPHA_NAV_X")
	at, _ := snap.Age("ALPHA_NAV_TYPE")
	ay, _ := snap.Age("ALPHA_NAV_Y")
	assert.Equal(t, time.Second, ax)
	assert.Equal(t, time.Second, at)
	assert.Zero(t, ay)
}

// ----------------------------------------------------------------------------
// Own-ship and contacts
// ----------------------------------------------------------------------------

func TestOwnship(t *testing.T) {
	t.Parallel()
	b := NewBuffer(nil)

	_, err := Ownship(b)
	var w *contact.Warning
	require.True(t, errors.As(err, &w))
	assert.Equal(t, contact.MissingField, w.Kind)
	assert.Equal(t, NavX, w.Field)

	b.SetOwnship(nav.State{X: 1, Y: 2, Heading: 370, Speed: 3})
	got, err := Ownship(b)
	require.NoError(t, err)
	assert.Equal(t, nav.State{Name: "ownship", X: 1, Y: 2, Heading: 10, Speed: 3}, got)
}

func TestOwnship_SpeedRequired(t *testing.T) {
	t.Parallel()
	b := NewBuffer(nil)
	b.SetDouble(NavX, 0)
	b.SetDouble(NavY, 0)
	b.SetDouble(NavHeading, 90)

	_, err := Ownship(b)
	var w *contact.Warning
	require.True(t, errors.As(err, &w))
	assert.Equal(t, contact.MissingField, w.Kind)
	assert.Equal(t, NavSpeed, w.Field)

	b.SetDouble(NavSpeed, 0)
	got, err := Ownship(b)
	require.NoError(t, err)
	assert.Zero(t, got.Speed)
	assert.Zero(t, got.Depth, "depth stays optional")
	assert.Equal(t, 90.0, got.Heading)
}

func TestOwnship_NoTornReads(t *testing.T) {
	t.Parallel()
	b := NewBuffer(nil)
	a := nav.State{X: 1, Y: 1, Heading: 10, Speed: 1}
	c := nav.State{X: 2, Y: 2, Heading: 20, Speed: 2}
	b.SetOwnship(a)

	done := make(chan struct{})
	var wg sync.WaitGroup
	defer wg.Wait()
	defer close(done)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			if i%2 == 0 {
				b.SetOwnship(c)
			} else {
				b.SetOwnship(a)
			}
		}
	}()

	for i := 0; i < 2000; i++ {
		got, err := Ownship(b.Snapshot())
		require.NoError(t, err)
		got.Name = ""
		if got != a && got != c {
			t.Fatalf("mixed own-ship fixes: %+v", got)
		}
	}
}

func TestApplyReport_RoundTrip(t *testing.T) {
	t.Parallel()
	b := NewBuffer(nil)
	rep, err := contact.ParseNodeReport("NAME=alpha,TYPE=kayak,X=10,Y=-20,SPD=2.5,HDG=90,TIME=1700000000.5")
	require.NoError(t, err)
	b.ApplyReport(rep)

	x, ok := b.GetDouble("ALPHA_NAV_X")
	require.True(t, ok)
	assert.Equal(t, 10.0, x)

	got := ContactReport(b, "alpha")
	if diff := cmp.Diff(rep, got); diff != "" {
		t.Errorf("ContactReport mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, got.Depth)
}

func TestApplyReport_PartialKeepsPrevious(t *testing.T) {
	t.Parallel()
	b := NewBuffer(nil)
	first, _ := contact.ParseNodeReport("NAME=bravo,X=1,Y=2,SPD=1,HDG=0")
	second, _ := contact.ParseNodeReport("NAME=bravo,X=5")
	b.ApplyReport(first)
	b.ApplyReport(second)

	st, err := ContactReport(b, "BRAVO").State()
	require.NoError(t, err)
	assert.Equal(t, 5.0, st.X)
	assert.Equal(t, 2.0, st.Y)
}

// ----------------------------------------------------------------------------
// Obstacles
// ----------------------------------------------------------------------------

func TestObstacles(t *testing.T) {
	t.Parallel()
	b := NewBuffer(nil)
	sq := geom.MustPolygon("rock", geom.Pt(0, 0), geom.Pt(10, 0), geom.Pt(10, 10), geom.Pt(0, 10))
	require.NoError(t, b.SetObstacle(sq))
	b.SetString(ObstaclePrefix+"BAD", "pts={oops}")

	polys, bad := Obstacles(b)
	require.Len(t, polys, 1)
	assert.Equal(t, sq.Vertices(), polys["ROCK"].Vertices())
	assert.Len(t, bad, 1)
	assert.Contains(t, bad, "OBSTACLE_BAD")

	assert.True(t, b.ResolveObstacle("rock"))
	polys, _ = Obstacles(b)
	assert.Empty(t, polys)
}

func TestSetObstacle_RequiresLabel(t *testing.T) {
	t.Parallel()
	b := NewBuffer(nil)
	sq := geom.MustPolygon("", geom.Pt(0, 0), geom.Pt(1, 0), geom.Pt(1, 1))
	assert.Error(t, b.SetObstacle(sq))
}
