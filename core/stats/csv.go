package stats

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/trezcool/hostel/core/hostel"
)

const notAllocated = "Not Allocated"

var financialsHeader = []string{
	"Student ID", "Name", "Course", "Year", "Room", "Phone", "Parent Phone",
	"Aadhar", "DOB", "Total Fees", "Paid Fees", "Pending Amount", "Status",
}

// WriteFinancialsCSV writes the fee report, one row per student.
// With pendingOnly, students with nothing left to pay are skipped.
func WriteFinancialsCSV(w io.Writer, students []hostel.Student, pendingOnly bool) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(financialsHeader); err != nil {
		return errors.Wrap(err, "writing header")
	}

	for _, s := range students {
		pending := PendingFees(s)
		if pendingOnly && pending <= 0 {
			continue
		}
		room := s.RoomNumber
		if !s.IsAllocated() || room == "" {
			room = notAllocated
		}
		record := []string{
			s.ID,
			s.Name,
			s.Course,
			strconv.Itoa(s.Year),
			room,
			s.PhoneNumber,
			s.ParentPhoneNumber,
			s.AadharNumber,
			s.DOB,
			strconv.FormatInt(s.TotalFees, 10),
			strconv.FormatInt(s.PaidFees, 10),
			strconv.FormatInt(pending, 10),
			FeeStatus(s),
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "writing student %s", s.ID)
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}
