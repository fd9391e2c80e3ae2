package archive

import "context"

// trackData is the bundle of values a release's edit form holds for one
// track. Tracks never fetch anything themselves; the owning release hands
// them everything in one call.
type trackData struct {
	name         string
	length       string
	lyrics       string
	instrumental bool
	bonus        bool
	release      string
	index        int
	disc         int
	band         string
	side         string
}

type Track struct {
	resource
	data trackData
}

func (a *Archive) Track(id string) *Track {
	e, _ := a.registry.getOrCreate(KindTrack, id, func(id string) Entity {
		return &Track{resource: resource{kind: KindTrack, id: id}}
	})
	return e.(*Track)
}

// Load is a no-op; tracks are only ever fed by their release through
// LoadData.
func (t *Track) Load(ctx context.Context) error {
	return nil
}

// LoadData populates the track from data already in hand, counting as its
// one load.
func (t *Track) LoadData(data trackData) {
	if !t.beginLoad() {
		t.log("already loaded")
		return
	}
	t.data = data
}

func (t *Track) project() any {
	f := fields{}
	f.set("name", t.data.name)
	f.set("length", t.data.length)
	f.set("lyrics", t.data.lyrics)
	f.set("instrumental", t.data.instrumental)
	f.set("bonus", t.data.bonus)
	f.set("release", idValue(t.data.release))
	f.set("index", t.data.index)
	f.set("disc", t.data.disc)
	f.set("band", idValue(t.data.band))
	f.set("side", t.data.side)
	return f
}

func (t *Track) ref() any {
	return idValue(t.Id())
}
