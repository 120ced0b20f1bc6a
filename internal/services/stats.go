package services

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/stayflow/stayflow-backend/internal/models"
	"github.com/stayflow/stayflow-backend/internal/storage"
)

// RecentPayment is one row of the dashboard's payment feed
type RecentPayment struct {
	Name   string    `json:"name"`
	Amount float64   `json:"amount"`
	Mode   string    `json:"mode"`
	Date   time.Time `json:"date"`
}

// DashboardStats summarises occupancy and this month's collection
type DashboardStats struct {
	TotalTenants         int             `json:"totalTenants"`
	PaidCount            int             `json:"paidCount"`
	PendingCount         int             `json:"pendingCount"`
	VacatedCount         int             `json:"vacatedCount"`
	TotalRevenue         float64         `json:"totalRevenue"`
	ExpectedRevenue      float64         `json:"expectedRevenue"`
	CollectionPercentage int             `json:"collectionPercentage"`
	RecentPayments       []RecentPayment `json:"recentPayments"`
}

// BuildDashboardStats computes the admin dashboard figures for the month containing now
func BuildDashboardStats(store storage.Store, now time.Time) (*DashboardStats, error) {
	tenants, err := store.GetAllTenants()
	if err != nil {
		return nil, err
	}
	monthPayments, err := store.GetPaymentsForMonth(models.MonthYearOf(now))
	if err != nil {
		return nil, err
	}

	s := &DashboardStats{RecentPayments: []RecentPayment{}}
	for _, t := range tenants {
		if t.IsVacated() {
			s.VacatedCount++
			continue
		}
		s.TotalTenants++
		s.ExpectedRevenue += t.TotalAmount
		if t.Status == models.TenantStatusPaid {
			s.PaidCount++
		} else {
			s.PendingCount++
		}
	}

	for _, p := range monthPayments {
		s.TotalRevenue += p.TotalAmount
	}
	if s.ExpectedRevenue > 0 {
		s.CollectionPercentage = int(math.Round(s.TotalRevenue / s.ExpectedRevenue * 100))
	}

	for i := len(monthPayments) - 1; i >= 0 && len(s.RecentPayments) < 5; i-- {
		p := monthPayments[i]
		s.RecentPayments = append(s.RecentPayments, RecentPayment{
			Name:   p.Name,
			Amount: p.TotalAmount,
			Mode:   p.PaymentMode,
			Date:   p.PaidAt,
		})
	}
	return s, nil
}

// Occupant is one tenant placed in a room
type Occupant struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Status string `json:"status"`
	Bed    string `json:"bed"`
}

// RoomOccupancy groups the tenants living in one room
type RoomOccupancy struct {
	Room      string     `json:"room"`
	Floor     string     `json:"floor"`
	Capacity  int        `json:"capacity"`
	Location  string     `json:"location"`
	Occupants []Occupant `json:"occupants"`
}

var sharingCapacity = map[string]int{
	"One Sharing":   1,
	"Two Sharing":   2,
	"Three Sharing": 3,
	"Four Sharing":  4,
}

func capacityOf(sharingType string) int {
	if n, ok := sharingCapacity[sharingType]; ok {
		return n
	}
	if n, err := strconv.Atoi(strings.Fields(sharingType + " 0")[0]); err == nil && n > 0 {
		return n
	}
	return 4
}

// BuildRoomMap groups non-vacated tenants by room, optionally for one location
func BuildRoomMap(store storage.Store, location string) ([]*RoomOccupancy, error) {
	tenants, err := store.GetAllTenants()
	if err != nil {
		return nil, err
	}

	rooms := map[string]*RoomOccupancy{}
	for _, t := range tenants {
		if t.IsVacated() {
			continue
		}
		if location != "" && !strings.EqualFold(t.LocationOrDefault(), location) {
			continue
		}
		room := t.Room
		if room == "" {
			room = "Unknown"
		}
		r, ok := rooms[room]
		if !ok {
			floor := t.Floor
			if floor == "" {
				floor = "1"
			}
			r = &RoomOccupancy{
				Room:     room,
				Floor:    floor,
				Capacity: capacityOf(t.SharingType),
				Location: t.LocationOrDefault(),
			}
			rooms[room] = r
		}
		bed := t.Bed
		if bed == "" {
			bed = "N/A"
		}
		r.Occupants = append(r.Occupants, Occupant{Name: t.Name, Phone: t.Phone, Status: t.Status, Bed: bed})
	}

	out := make([]*RoomOccupancy, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Room < out[j].Room })
	return out, nil
}
