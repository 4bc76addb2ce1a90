package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"bandkeeper/pkg/domain"
)

func (d *Dispatcher) registerBuiltins() {
	builtins := []Command{
		{Name: "help", Usage: "help", Summary: "list available commands", Handler: d.help},
		{Name: "info", Usage: "info", Summary: "show collection type, initialization date and size", Handler: d.info},
		{Name: "show", Usage: "show", Summary: "list every band in collection order", Handler: d.show},
		{Name: "add", Usage: "add {band}", Summary: "add a new band", Handler: d.add},
		{Name: "update", Usage: "update <id> {band}", Summary: "replace the band with the given id", Handler: d.update},
		{Name: "insert_at", Usage: "insert_at <index> {band}", Summary: "insert a new band at the given position", Handler: d.insertAt},
		{Name: "set_at", Usage: "set_at <index> {band}", Summary: "replace the band at the given position", Handler: d.setAt},
		{Name: "remove", Usage: "remove {band}", Summary: "remove every band equal to the given one", Handler: d.remove},
		{Name: "get_by_id", Usage: "get_by_id <id>", Summary: "show the band with the given id", Handler: d.getByID},
		{Name: "get_at", Usage: "get_at <index>", Summary: "show the band at the given position", Handler: d.getAt},
		{Name: "remove_by_id", Usage: "remove_by_id <id>", Summary: "remove the band with the given id", Handler: d.removeByID},
		{Name: "remove_last", Usage: "remove_last", Summary: "remove the last band", Handler: d.removeLast},
		{Name: "clear", Usage: "clear", Summary: "remove every band", Handler: d.clear},
		{Name: "sort", Usage: "sort", Summary: "sort the collection in natural order", Handler: d.sort},
		{Name: "print_field_ascending_genre", Usage: "print_field_ascending_genre", Summary: "print band genres in ascending order", Handler: d.genresAscending},
		{Name: "count_greater_than_genre", Usage: "count_greater_than_genre <genre>", Summary: "count bands compared against the given genre", Handler: d.countGreaterThanGenre},
		{Name: "filter_less_than_singles_count", Usage: "filter_less_than_singles_count <n>", Summary: "show bands with fewer than n singles", Handler: d.filterLessThanSingles},
		{Name: "check_ids", Usage: "check_ids", Summary: "report whether identifiers are unique", Handler: d.checkIDs},
		{Name: "export", Usage: "export", Summary: "archive a collection snapshot to blob storage", Handler: d.export},
	}
	for _, cmd := range builtins {
		name := normalizeCommand(cmd.Name)
		cmd.Name = name
		d.commands[name] = cmd
	}
}

func (d *Dispatcher) help(context.Context, domain.Request) (Outcome, error) {
	return Outcome{Body: d.Help()}, nil
}

func (d *Dispatcher) info(context.Context, domain.Request) (Outcome, error) {
	return Outcome{Body: d.store.Info()}, nil
}

func (d *Dispatcher) show(context.Context, domain.Request) (Outcome, error) {
	return Outcome{Body: nonNil(d.store.List())}, nil
}

func (d *Dispatcher) add(_ context.Context, req domain.Request) (Outcome, error) {
	band, err := payloadOf(req)
	if err != nil {
		return Outcome{}, err
	}
	created, err := d.store.Create(band)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Body:    fmt.Sprintf("band %d added", created.ID),
		Changes: []Change{{Action: ActionCreate, After: &created}},
	}, nil
}

func (d *Dispatcher) update(_ context.Context, req domain.Request) (Outcome, error) {
	id, err := parseID(req.Argument)
	if err != nil {
		return Outcome{}, err
	}
	band, err := payloadOf(req)
	if err != nil {
		return Outcome{}, err
	}
	before, after, ok, err := d.store.ReplaceByID(id, band)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return Outcome{}, domain.NotFoundError(id)
	}
	return Outcome{
		Body:    fmt.Sprintf("band %d updated", id),
		Changes: []Change{{Action: ActionUpdate, Before: &before, After: &after}},
	}, nil
}

func (d *Dispatcher) insertAt(_ context.Context, req domain.Request) (Outcome, error) {
	index, err := parseIndex(req.Argument)
	if err != nil {
		return Outcome{}, err
	}
	band, err := payloadOf(req)
	if err != nil {
		return Outcome{}, err
	}
	created, err := d.store.CreateAt(index, band)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Body:    fmt.Sprintf("band %d inserted at %d", created.ID, index),
		Changes: []Change{{Action: ActionCreate, After: &created}},
	}, nil
}

func (d *Dispatcher) setAt(_ context.Context, req domain.Request) (Outcome, error) {
	index, err := parseIndex(req.Argument)
	if err != nil {
		return Outcome{}, err
	}
	band, err := payloadOf(req)
	if err != nil {
		return Outcome{}, err
	}
	before, err := d.store.Set(index, band)
	if err != nil {
		return Outcome{}, err
	}
	after := band.Clone()
	after.ID = before.ID
	after.CreationDate = before.CreationDate
	return Outcome{
		Body:    fmt.Sprintf("band at %d replaced", index),
		Changes: []Change{{Action: ActionUpdate, Before: &before, After: &after}},
	}, nil
}

func (d *Dispatcher) remove(_ context.Context, req domain.Request) (Outcome, error) {
	band, err := payloadOf(req)
	if err != nil {
		return Outcome{}, err
	}
	removed := d.store.Remove(band)
	return Outcome{
		Body:    fmt.Sprintf("%d band(s) removed", len(removed)),
		Changes: deletions(removed),
	}, nil
}

func (d *Dispatcher) getByID(_ context.Context, req domain.Request) (Outcome, error) {
	id, err := parseID(req.Argument)
	if err != nil {
		return Outcome{}, err
	}
	band, err := d.store.GetByID(id)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Body: band}, nil
}

func (d *Dispatcher) getAt(_ context.Context, req domain.Request) (Outcome, error) {
	index, err := parseIndex(req.Argument)
	if err != nil {
		return Outcome{}, err
	}
	band, err := d.store.Get(index)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Body: band}, nil
}

func (d *Dispatcher) removeByID(_ context.Context, req domain.Request) (Outcome, error) {
	id, err := parseID(req.Argument)
	if err != nil {
		return Outcome{}, err
	}
	removed, ok := d.store.RemoveByID(id)
	if !ok {
		return Outcome{}, domain.NotFoundError(id)
	}
	return Outcome{
		Body:    fmt.Sprintf("band %d removed", id),
		Changes: deletions([]domain.Band{removed}),
	}, nil
}

func (d *Dispatcher) removeLast(context.Context, domain.Request) (Outcome, error) {
	removed, ok := d.store.RemoveLast()
	if !ok {
		return Outcome{Body: "collection is empty, nothing removed"}, nil
	}
	return Outcome{
		Body:    fmt.Sprintf("band %d removed", removed.ID),
		Changes: deletions([]domain.Band{removed}),
	}, nil
}

func (d *Dispatcher) clear(context.Context, domain.Request) (Outcome, error) {
	removed := d.store.Clear()
	return Outcome{
		Body:    fmt.Sprintf("collection cleared, %d band(s) removed", len(removed)),
		Changes: deletions(removed),
	}, nil
}

func (d *Dispatcher) sort(context.Context, domain.Request) (Outcome, error) {
	d.store.Sort()
	return Outcome{
		Body:    "collection sorted",
		Changes: []Change{{Action: ActionReorder}},
	}, nil
}

func (d *Dispatcher) genresAscending(context.Context, domain.Request) (Outcome, error) {
	view := d.store.SortByGenre()
	genres := make([]*domain.MusicGenre, len(view))
	for i, b := range view {
		genres[i] = b.Genre
	}
	return Outcome{Body: genres}, nil
}

func (d *Dispatcher) countGreaterThanGenre(_ context.Context, req domain.Request) (Outcome, error) {
	genre, err := domain.ParseGenre(req.Argument)
	if err != nil {
		return Outcome{}, domain.Wrap(domain.KindMalformedRequest, "invalid genre argument", err)
	}
	return Outcome{Body: d.store.CountGreaterThanGenre(genre)}, nil
}

func (d *Dispatcher) filterLessThanSingles(_ context.Context, req domain.Request) (Outcome, error) {
	n, err := strconv.Atoi(strings.TrimSpace(req.Argument))
	if err != nil {
		return Outcome{}, domain.Wrap(domain.KindMalformedRequest, "singles count argument must be an integer", err)
	}
	return Outcome{Body: nonNil(d.store.FilterLessThanSingles(n))}, nil
}

func (d *Dispatcher) checkIDs(context.Context, domain.Request) (Outcome, error) {
	return Outcome{Body: !d.store.ContainsDuplicateIDs()}, nil
}

func (d *Dispatcher) export(ctx context.Context, req domain.Request) (Outcome, error) {
	if d.archive == nil {
		return Outcome{}, domain.Errorf(domain.KindInternal, "export archive is not configured")
	}
	res, err := archiveSnapshot(ctx, d.archive, d.store.Snapshot(), req.User.Login, d.clock.Now())
	if err != nil {
		return Outcome{}, domain.Wrap(domain.KindInternal, "export collection", err)
	}
	return Outcome{Body: res}, nil
}

// payloadOf returns the request payload stamped with the requesting user.
func payloadOf(req domain.Request) (domain.Band, error) {
	if req.Payload == nil {
		return domain.Band{}, domain.Errorf(domain.KindMalformedRequest, "command %s requires a band payload", req.Command)
	}
	band := req.Payload.Clone()
	band.Owner = req.User.Login
	return band, nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil {
		return 0, domain.Wrap(domain.KindMalformedRequest, "id argument must be an integer", err)
	}
	return id, nil
}

func parseIndex(arg string) (int, error) {
	index, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, domain.Wrap(domain.KindMalformedRequest, "index argument must be an integer", err)
	}
	return index, nil
}

func deletions(removed []domain.Band) []Change {
	changes := make([]Change, 0, len(removed))
	for i := range removed {
		changes = append(changes, Change{Action: ActionDelete, Before: &removed[i]})
	}
	return changes
}

func nonNil(bands []domain.Band) []domain.Band {
	if bands == nil {
		return []domain.Band{}
	}
	return bands
}
