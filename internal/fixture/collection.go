package fixture

import "fmt"

// Collection owns the fixtures of one analysis, in import order. Link
// relations are stored by fixture id rather than by pointer so that
// reordering or removing fixtures can never leave a dangling reference.
type Collection struct {
	fixtures []*FixtureMatch
	byID     map[int]*FixtureMatch
}

func NewCollection() *Collection {
	return &Collection{byID: make(map[int]*FixtureMatch)}
}

// Add appends a fixture. Duplicate fixture ids are tolerated: the first
// fixture registered under an id wins lookups, later ones still appear
// in All() and in validation reports.
func (c *Collection) Add(f *FixtureMatch) {
	c.fixtures = append(c.fixtures, f)
	if _, exists := c.byID[f.FixtureID]; !exists {
		c.byID[f.FixtureID] = f
	}
}

// ByID returns the fixture registered under id, or nil.
func (c *Collection) ByID(id int) *FixtureMatch {
	return c.byID[id]
}

// All returns the fixtures in insertion order. Callers must not
// reorder the returned slice.
func (c *Collection) All() []*FixtureMatch {
	return c.fixtures
}

func (c *Collection) Len() int {
	return len(c.fixtures)
}

// Link makes remoteID a remote of masterID, updating both sides. The
// master is promoted to RoleMaster if it wasn't one already; a remote
// already linked elsewhere is unlinked first so the relation stays
// symmetric.
func (c *Collection) Link(masterID, remoteID int) error {
	if masterID == remoteID {
		return fmt.Errorf("fixture %d cannot be its own master", masterID)
	}
	master := c.byID[masterID]
	if master == nil {
		return fmt.Errorf("master fixture %d not found", masterID)
	}
	remote := c.byID[remoteID]
	if remote == nil {
		return fmt.Errorf("remote fixture %d not found", remoteID)
	}
	if master.Role == RoleRemote {
		return fmt.Errorf("fixture %d is a remote and cannot be a master", masterID)
	}
	if remote.Role == RoleMaster && len(remote.LinkedFixtureIDs) > 0 {
		return fmt.Errorf("fixture %d is a master with linked remotes", remoteID)
	}
	if remote.Role == RoleRemote && remote.MasterFixtureID != 0 {
		if err := c.Unlink(remoteID); err != nil {
			return err
		}
	}

	master.Role = RoleMaster
	if master.LinkedFixtureIDs == nil {
		master.LinkedFixtureIDs = make(map[int]struct{})
	}
	master.LinkedFixtureIDs[remoteID] = struct{}{}
	remote.Role = RoleRemote
	remote.MasterFixtureID = masterID
	return nil
}

// Unlink detaches remoteID from its master, clearing both sides. A
// master left with no remotes keeps its master role; only re-matching
// or explicit role edits change that.
func (c *Collection) Unlink(remoteID int) error {
	remote := c.byID[remoteID]
	if remote == nil {
		return fmt.Errorf("fixture %d not found", remoteID)
	}
	if remote.Role != RoleRemote || remote.MasterFixtureID == 0 {
		return fmt.Errorf("fixture %d is not linked to a master", remoteID)
	}
	if master := c.byID[remote.MasterFixtureID]; master != nil {
		delete(master.LinkedFixtureIDs, remoteID)
	}
	remote.MasterFixtureID = 0
	remote.Role = RoleUnassigned
	return nil
}

// ValidationIssue is an advisory defect found by Validate. Issues never
// block matching or export.
type ValidationIssue struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	FixtureIDs []int  `json:"fixtureIds"`
}

// Validate scans for duplicate fixture ids and duplicate base
// addresses across the collection.
func (c *Collection) Validate() []ValidationIssue {
	var issues []ValidationIssue
	seenID := make(map[int][]int)
	seenBase := make(map[int][]int)
	for i, f := range c.fixtures {
		seenID[f.FixtureID] = append(seenID[f.FixtureID], i)
		seenBase[f.BaseAddress] = append(seenBase[f.BaseAddress], f.FixtureID)
	}
	for id, idxs := range seenID {
		if len(idxs) > 1 {
			issues = append(issues, ValidationIssue{
				Kind:       "duplicate_fixture_id",
				Message:    fmt.Sprintf("fixture id %d used by %d fixtures", id, len(idxs)),
				FixtureIDs: repeated(id, len(idxs)),
			})
		}
	}
	for base, ids := range seenBase {
		if len(ids) > 1 {
			issues = append(issues, ValidationIssue{
				Kind:       "duplicate_base_address",
				Message:    fmt.Sprintf("base address %d shared by %d fixtures", base, len(ids)),
				FixtureIDs: ids,
			})
		}
	}
	return issues
}

func repeated(v, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}
