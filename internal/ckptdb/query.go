package ckptdb

import (
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/sparcians/map-checkpoint/pkg/log"
)

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// insertWindow writes one compressed window as a single row plus its
// id/tick index rows (spec §4.4 stage 5), returning the window_bytes
// row id.
func insertWindow(db *sqlx.DB, compressed []byte, ids []uint64, startTick, endTick uint64) (int64, error) {
	tx, err := db.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	sqlStr, args, err := builder.Insert("window_bytes").Columns("bytes").Values(compressed).ToSql()
	if err != nil {
		return 0, err
	}
	res, err := tx.Exec(sqlStr, args...)
	if err != nil {
		return 0, err
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	idsIns := builder.Insert("window_ids").Columns("window_bytes_id", "chkpt_id")
	for _, id := range ids {
		idsIns = idsIns.Values(rowID, id)
	}
	sqlStr, args, err = idsIns.ToSql()
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(sqlStr, args...); err != nil {
		return 0, err
	}

	sqlStr, args, err = builder.Insert("window_ticks").
		Columns("window_bytes_id", "start_tick", "end_tick").
		Values(rowID, startTick, endTick).ToSql()
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(sqlStr, args...); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	log.Debugf("ckptdb: persisted window %d (%d ids, ticks %d..%d)", rowID, len(ids), startTick, endTick)
	return rowID, nil
}

// findWindowForCheckpoint is the "is id in DB" point lookup (spec
// §4.4 Query extension).
func findWindowForCheckpoint(db *sqlx.DB, id uint64) (int64, bool, error) {
	sqlStr, args, err := builder.Select("window_bytes_id").
		From("window_ids").Where(sq.Eq{"chkpt_id": id}).ToSql()
	if err != nil {
		return 0, false, err
	}
	var rowID int64
	if err := db.Get(&rowID, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return rowID, true, nil
}

// findWindowsAtTick is the "checkpoints at tick t" range-intersection
// query (spec §4.4, §6 window_ticks schema).
func findWindowsAtTick(db *sqlx.DB, tick uint64) ([]int64, error) {
	sqlStr, args, err := builder.Select("window_bytes_id").
		From("window_ticks").
		Where(sq.And{sq.LtOrEq{"start_tick": tick}, sq.GtOrEq{"end_tick": tick}}).
		ToSql()
	if err != nil {
		return nil, err
	}
	var rowIDs []int64
	if err := db.Select(&rowIDs, sqlStr, args...); err != nil {
		return nil, err
	}
	return rowIDs, nil
}

// loadWindowBytes reads back the compressed payload for a window row.
func loadWindowBytes(db *sqlx.DB, rowID int64) ([]byte, error) {
	sqlStr, args, err := builder.Select("bytes").From("window_bytes").
		Where(sq.Eq{"id": rowID}).ToSql()
	if err != nil {
		return nil, err
	}
	var compressed []byte
	if err := db.Get(&compressed, sqlStr, args...); err != nil {
		return nil, err
	}
	return compressed, nil
}
