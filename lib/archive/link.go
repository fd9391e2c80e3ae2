package archive

import "context"

// linkArgs carries everything a related-links table row knows about one
// link.
type linkArgs struct {
	name    string
	url     string
	typ     string
	subject Entity
}

// Link is one entry in a submission's "Related Links" tab. Links carry all
// their data at discovery time and never fetch anything.
type Link struct {
	resource
	args linkArgs
}

func (a *Archive) Link(id string, args linkArgs) *Link {
	e, _ := a.registry.getOrCreate(KindLink, id, func(id string) Entity {
		return &Link{
			resource: resource{kind: KindLink, id: id, loaded: true},
			args:     args,
		}
	})
	return e.(*Link)
}

func (l *Link) Load(ctx context.Context) error {
	return nil
}

func (l *Link) project() any {
	f := fields{}
	f.set("name", l.args.name)
	f.set("url", l.args.url)
	f.set("type", l.args.typ)
	if l.args.subject != nil {
		f.set("for", l.args.subject.ref())
	}
	return f
}

func (l *Link) ref() any {
	return idValue(l.Id())
}
