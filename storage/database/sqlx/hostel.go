package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/hostel/core/hostel"
)

var (
	roomColumns = []string{
		"id", "number", "capacity", "occupants", "type", "price", "features", "floor", "image", "created_at",
	}
	studentColumns = []string{
		"id", "name", "email", "room_id", "room_number", "course", "year", "phone_number",
		"parent_phone_number", "aadhar_number", "dob", "total_fees", "paid_fees", "created_at",
	}
	grievanceColumns = []string{
		"id", "student_id", "category", "description", "status", "priority", "ai_analysis", "timestamp",
	}
	noticeColumns = []string{"id", "title", "content", "priority", "date"}
	leaveColumns  = []string{"id", "student_id", "reason", "start_date", "end_date", "status", "created_at"}
)

type (
	roomRow struct {
		ID        string         `db:"id"`
		Number    string         `db:"number"`
		Capacity  int            `db:"capacity"`
		Occupants pq.StringArray `db:"occupants"`
		Type      string         `db:"type"`
		Price     int64          `db:"price"`
		Features  pq.StringArray `db:"features"`
		Floor     int            `db:"floor"`
		Image     string         `db:"image"`
		CreatedAt time.Time      `db:"created_at"`
	}

	studentRow struct {
		ID                string    `db:"id"`
		Name              string    `db:"name"`
		Email             string    `db:"email"`
		RoomID            *string   `db:"room_id"`
		RoomNumber        string    `db:"room_number"`
		Course            string    `db:"course"`
		Year              int       `db:"year"`
		PhoneNumber       string    `db:"phone_number"`
		ParentPhoneNumber string    `db:"parent_phone_number"`
		AadharNumber      string    `db:"aadhar_number"`
		DOB               string    `db:"dob"`
		TotalFees         int64     `db:"total_fees"`
		PaidFees          int64     `db:"paid_fees"`
		CreatedAt         time.Time `db:"created_at"`
	}

	grievanceRow struct {
		ID          string    `db:"id"`
		StudentID   string    `db:"student_id"`
		Category    string    `db:"category"`
		Description string    `db:"description"`
		Status      string    `db:"status"`
		Priority    string    `db:"priority"`
		AIAnalysis  string    `db:"ai_analysis"`
		Timestamp   time.Time `db:"timestamp"`
	}

	noticeRow struct {
		ID       string `db:"id"`
		Title    string `db:"title"`
		Content  string `db:"content"`
		Priority string `db:"priority"`
		Date     string `db:"date"`
	}

	leaveRow struct {
		ID        string    `db:"id"`
		StudentID string    `db:"student_id"`
		Reason    string    `db:"reason"`
		StartDate string    `db:"start_date"`
		EndDate   string    `db:"end_date"`
		Status    string    `db:"status"`
		CreatedAt time.Time `db:"created_at"`
	}
)

func (r roomRow) model() hostel.Room {
	occupants := []string(r.Occupants)
	if occupants == nil {
		occupants = []string{}
	}
	features := []string(r.Features)
	if features == nil {
		features = []string{}
	}
	return hostel.Room{
		ID:        r.ID,
		Number:    r.Number,
		Capacity:  r.Capacity,
		Occupants: occupants,
		Type:      r.Type,
		Price:     r.Price,
		Features:  features,
		Floor:     r.Floor,
		Image:     r.Image,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func (r studentRow) model() hostel.Student {
	return hostel.Student{
		ID:                r.ID,
		Name:              r.Name,
		Email:             r.Email,
		RoomID:            r.RoomID,
		RoomNumber:        r.RoomNumber,
		Course:            r.Course,
		Year:              r.Year,
		PhoneNumber:       r.PhoneNumber,
		ParentPhoneNumber: r.ParentPhoneNumber,
		AadharNumber:      r.AadharNumber,
		DOB:               r.DOB,
		TotalFees:         r.TotalFees,
		PaidFees:          r.PaidFees,
		CreatedAt:         r.CreatedAt.UTC(),
	}
}

func (r grievanceRow) model() hostel.Grievance {
	g := hostel.Grievance(r)
	g.Timestamp = g.Timestamp.UTC()
	return g
}

func (r noticeRow) model() hostel.Notice { return hostel.Notice(r) }

func (r leaveRow) model() hostel.LeaveRequest {
	l := hostel.LeaveRequest(r)
	l.CreatedAt = l.CreatedAt.UTC()
	return l
}

type hostelRepository struct {
	db *sqlx.DB
}

var _ hostel.Repository = (*hostelRepository)(nil)

func NewHostelRepository(db *sqlx.DB) hostel.Repository {
	return &hostelRepository{db: db}
}

// Rooms

func (repo *hostelRepository) CreateRoom(ctx context.Context, room hostel.Room) (hostel.Room, error) {
	var row roomRow
	b := psql.Insert("rooms").
		Columns(roomColumns...).
		Values(
			newID(room.ID), room.Number, room.Capacity, pq.StringArray(nonNil(room.Occupants)), room.Type,
			room.Price, pq.StringArray(nonNil(room.Features)), room.Floor, room.Image, room.CreatedAt,
		).
		Suffix("RETURNING " + columnList(roomColumns))
	if err := get(ctx, repo.db, &row, b, nil); err != nil {
		return hostel.Room{}, err
	}
	return row.model(), nil
}

func (repo *hostelRepository) QueryRooms(ctx context.Context) ([]hostel.Room, error) {
	var rows []roomRow
	if err := selectAll(ctx, repo.db, &rows, psql.Select(roomColumns...).From("rooms").OrderBy("created_at", "id")); err != nil {
		return nil, err
	}
	rooms := make([]hostel.Room, 0, len(rows))
	for _, r := range rows {
		rooms = append(rooms, r.model())
	}
	return rooms, nil
}

func (repo *hostelRepository) GetRoom(ctx context.Context, id string) (hostel.Room, error) {
	var row roomRow
	b := psql.Select(roomColumns...).From("rooms").Where(squirrel.Eq{"id": id})
	if err := get(ctx, repo.db, &row, b, hostel.ErrRoomNotFound); err != nil {
		return hostel.Room{}, err
	}
	return row.model(), nil
}

// Students

func (repo *hostelRepository) CreateStudent(ctx context.Context, std hostel.Student) (hostel.Student, error) {
	var row studentRow
	b := psql.Insert("students").
		Columns(studentColumns...).
		Values(
			newID(std.ID), std.Name, std.Email, std.RoomID, std.RoomNumber, std.Course, std.Year, std.PhoneNumber,
			std.ParentPhoneNumber, std.AadharNumber, std.DOB, std.TotalFees, std.PaidFees, std.CreatedAt,
		).
		Suffix("RETURNING " + columnList(studentColumns))
	query, args, err := b.ToSql()
	if err != nil {
		return hostel.Student{}, errors.Wrap(err, "building query")
	}
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if isDuplicateKeyError(err) {
			return hostel.Student{}, hostel.ErrStudentEmailExists
		}
		return hostel.Student{}, storeErr("creating student", err)
	}
	return row.model(), nil
}

func (repo *hostelRepository) QueryStudents(ctx context.Context, filter hostel.StudentFilter) ([]hostel.Student, error) {
	where := squirrel.And{}
	if filter.Email != "" {
		where = append(where, squirrel.Eq{"email": filter.Email})
	}
	if filter.Unallocated {
		where = append(where, squirrel.Eq{"room_id": nil})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		where = append(where, squirrel.Or{squirrel.ILike{"name": pattern}, squirrel.ILike{"id": pattern}})
	}

	var rows []studentRow
	b := psql.Select(studentColumns...).From("students").Where(where).OrderBy("created_at", "id")
	if err := selectAll(ctx, repo.db, &rows, b); err != nil {
		return nil, err
	}
	students := make([]hostel.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.model())
	}
	return students, nil
}

func (repo *hostelRepository) GetStudent(ctx context.Context, id string) (hostel.Student, error) {
	var row studentRow
	b := psql.Select(studentColumns...).From("students").Where(squirrel.Eq{"id": id})
	if err := get(ctx, repo.db, &row, b, hostel.ErrStudentNotFound); err != nil {
		return hostel.Student{}, err
	}
	return row.model(), nil
}

func (repo *hostelRepository) UpdateStudentProfile(ctx context.Context, id string, up hostel.UpdateProfile) (hostel.Student, error) {
	b := psql.Update("students").Where(squirrel.Eq{"id": id}).Suffix("RETURNING " + columnList(studentColumns))
	if up.Course != nil {
		b = b.Set("course", *up.Course)
	}
	if up.Year != nil {
		b = b.Set("year", *up.Year)
	}
	if up.PhoneNumber != nil {
		b = b.Set("phone_number", *up.PhoneNumber)
	}
	if up.ParentPhoneNumber != nil {
		b = b.Set("parent_phone_number", *up.ParentPhoneNumber)
	}
	if up.IsEmpty() {
		return repo.GetStudent(ctx, id)
	}

	var row studentRow
	if err := get(ctx, repo.db, &row, b, hostel.ErrStudentNotFound); err != nil {
		return hostel.Student{}, err
	}
	return row.model(), nil
}

func (repo *hostelRepository) SetPaidFees(ctx context.Context, id string, paid int64) (hostel.Student, error) {
	var row studentRow
	b := psql.Update("students").Set("paid_fees", paid).Where(squirrel.Eq{"id": id}).Suffix("RETURNING " + columnList(studentColumns))
	if err := get(ctx, repo.db, &row, b, hostel.ErrStudentNotFound); err != nil {
		return hostel.Student{}, err
	}
	return row.model(), nil
}

// DeleteStudent locks the rooms listing the student before the student row,
// the same order Allocate and Deallocate lock them in.
func (repo *hostelRepository) DeleteStudent(ctx context.Context, id string) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var locked []string
		lock := psql.Select("id").From("rooms").Where("? = ANY(occupants)", id).Suffix("FOR UPDATE")
		if err := selectAll(ctx, tx, &locked, lock); err != nil {
			return err
		}
		if len(locked) > 0 {
			_, err := exec(ctx, tx, psql.Update("rooms").
				Set("occupants", squirrel.Expr("array_remove(occupants, ?)", id)).
				Where(squirrel.Eq{"id": locked}))
			if err != nil {
				return errors.Wrap(err, "freeing bed")
			}
		}

		n, err := exec(ctx, tx, psql.Delete("students").Where(squirrel.Eq{"id": id}))
		if err != nil {
			return errors.Wrap(err, "deleting student")
		}
		if n == 0 {
			return hostel.ErrStudentNotFound
		}
		return nil
	})
}

// Allocation

func (repo *hostelRepository) lockRoom(ctx context.Context, tx *sqlx.Tx, id string) (roomRow, error) {
	var row roomRow
	b := psql.Select(roomColumns...).From("rooms").Where(squirrel.Eq{"id": id}).Suffix("FOR UPDATE")
	err := get(ctx, tx, &row, b, hostel.ErrRoomNotFound)
	return row, err
}

func (repo *hostelRepository) Allocate(ctx context.Context, roomID, studentID string) (hostel.Room, error) {
	var room hostel.Room
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		row, err := repo.lockRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}

		var std studentRow
		lock := psql.Select(studentColumns...).From("students").Where(squirrel.Eq{"id": studentID}).Suffix("FOR UPDATE")
		if err = get(ctx, tx, &std, lock, hostel.ErrStudentNotFound); err != nil {
			return err
		}
		if std.RoomID != nil {
			return hostel.ErrAlreadyAllocated
		}
		if row.model().IsFull() {
			return hostel.ErrCapacityExceeded
		}

		upd := psql.Update("rooms").
			Set("occupants", squirrel.Expr("array_append(occupants, ?)", studentID)).
			Where(squirrel.Eq{"id": roomID}).
			Suffix("RETURNING " + columnList(roomColumns))
		if err = get(ctx, tx, &row, upd, hostel.ErrRoomNotFound); err != nil {
			return err
		}
		_, err = exec(ctx, tx, psql.Update("students").
			SetMap(map[string]interface{}{"room_id": roomID, "room_number": row.Number}).
			Where(squirrel.Eq{"id": studentID}))
		if err != nil {
			return errors.Wrap(err, "pointing student at room")
		}
		room = row.model()
		return nil
	})
	return room, err
}

func (repo *hostelRepository) Deallocate(ctx context.Context, roomID, studentID string) (hostel.Room, error) {
	var room hostel.Room
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		row, err := repo.lockRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}

		upd := psql.Update("rooms").
			Set("occupants", squirrel.Expr("array_remove(occupants, ?)", studentID)).
			Where(squirrel.Eq{"id": roomID}).
			Suffix("RETURNING " + columnList(roomColumns))
		if err = get(ctx, tx, &row, upd, hostel.ErrRoomNotFound); err != nil {
			return err
		}
		_, err = exec(ctx, tx, psql.Update("students").
			SetMap(map[string]interface{}{"room_id": nil, "room_number": ""}).
			Where(squirrel.Eq{"id": studentID, "room_id": roomID}))
		if err != nil {
			return errors.Wrap(err, "clearing student room")
		}
		room = row.model()
		return nil
	})
	return room, err
}

// Grievances

func (repo *hostelRepository) CreateGrievance(ctx context.Context, g hostel.Grievance) (hostel.Grievance, error) {
	var row grievanceRow
	b := psql.Insert("grievances").
		Columns(grievanceColumns...).
		Values(newID(g.ID), g.StudentID, g.Category, g.Description, g.Status, g.Priority, g.AIAnalysis, g.Timestamp).
		Suffix("RETURNING " + columnList(grievanceColumns))
	if err := get(ctx, repo.db, &row, b, nil); err != nil {
		return hostel.Grievance{}, err
	}
	return row.model(), nil
}

func (repo *hostelRepository) QueryGrievances(ctx context.Context, filter hostel.GrievanceFilter) ([]hostel.Grievance, error) {
	where := squirrel.And{}
	if filter.StudentID != "" {
		where = append(where, squirrel.Eq{"student_id": filter.StudentID})
	}
	if filter.Status != "" {
		where = append(where, squirrel.Eq{"status": filter.Status})
	}

	var rows []grievanceRow
	b := psql.Select(grievanceColumns...).From("grievances").Where(where).OrderBy("timestamp", "id")
	if err := selectAll(ctx, repo.db, &rows, b); err != nil {
		return nil, err
	}
	grievances := make([]hostel.Grievance, 0, len(rows))
	for _, r := range rows {
		grievances = append(grievances, r.model())
	}
	return grievances, nil
}

func (repo *hostelRepository) UpdateGrievanceStatus(ctx context.Context, id, status string) (hostel.Grievance, error) {
	var row grievanceRow
	b := psql.Update("grievances").Set("status", status).Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING " + columnList(grievanceColumns))
	if err := get(ctx, repo.db, &row, b, hostel.ErrGrievanceNotFound); err != nil {
		return hostel.Grievance{}, err
	}
	return row.model(), nil
}

// Notices

func (repo *hostelRepository) CreateNotice(ctx context.Context, n hostel.Notice) (hostel.Notice, error) {
	var row noticeRow
	b := psql.Insert("notices").
		Columns(noticeColumns...).
		Values(newID(n.ID), n.Title, n.Content, n.Priority, n.Date).
		Suffix("RETURNING " + columnList(noticeColumns))
	if err := get(ctx, repo.db, &row, b, nil); err != nil {
		return hostel.Notice{}, err
	}
	return row.model(), nil
}

func (repo *hostelRepository) QueryNotices(ctx context.Context) ([]hostel.Notice, error) {
	var rows []noticeRow
	if err := selectAll(ctx, repo.db, &rows, psql.Select(noticeColumns...).From("notices").OrderBy("seq")); err != nil {
		return nil, err
	}
	notices := make([]hostel.Notice, 0, len(rows))
	for _, r := range rows {
		notices = append(notices, r.model())
	}
	return notices, nil
}

func (repo *hostelRepository) DeleteNotice(ctx context.Context, id string) error {
	n, err := exec(ctx, repo.db, psql.Delete("notices").Where(squirrel.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting notice")
	}
	if n == 0 {
		return hostel.ErrNoticeNotFound
	}
	return nil
}

// Leave requests

func (repo *hostelRepository) CreateLeaveRequest(ctx context.Context, l hostel.LeaveRequest) (hostel.LeaveRequest, error) {
	var row leaveRow
	b := psql.Insert("leave_requests").
		Columns(leaveColumns...).
		Values(newID(l.ID), l.StudentID, l.Reason, l.StartDate, l.EndDate, l.Status, l.CreatedAt).
		Suffix("RETURNING " + columnList(leaveColumns))
	if err := get(ctx, repo.db, &row, b, nil); err != nil {
		return hostel.LeaveRequest{}, err
	}
	return row.model(), nil
}

func (repo *hostelRepository) QueryLeaveRequests(ctx context.Context, filter hostel.LeaveFilter) ([]hostel.LeaveRequest, error) {
	where := squirrel.And{}
	if filter.StudentID != "" {
		where = append(where, squirrel.Eq{"student_id": filter.StudentID})
	}
	if filter.Status != "" {
		where = append(where, squirrel.Eq{"status": filter.Status})
	}

	var rows []leaveRow
	b := psql.Select(leaveColumns...).From("leave_requests").Where(where).OrderBy("created_at", "id")
	if err := selectAll(ctx, repo.db, &rows, b); err != nil {
		return nil, err
	}
	leaves := make([]hostel.LeaveRequest, 0, len(rows))
	for _, r := range rows {
		leaves = append(leaves, r.model())
	}
	return leaves, nil
}

func (repo *hostelRepository) UpdateLeaveStatus(ctx context.Context, id, status string) (hostel.LeaveRequest, error) {
	var row leaveRow
	b := psql.Update("leave_requests").Set("status", status).Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING " + columnList(leaveColumns))
	if err := get(ctx, repo.db, &row, b, hostel.ErrLeaveRequestNotFound); err != nil {
		return hostel.LeaveRequest{}, err
	}
	return row.model(), nil
}

func columnList(cols []string) string {
	return strings.Join(cols, ", ")
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
