package apitest

import (
	"time"

	"github.com/and161185/retreat-client/internal/model"
)

// SeedRetreats returns the catalogue the server starts with: 12 listings with IDs 40..51,
// three of them tagged "yoga". Listing 42 is "Lakeside Yoga Week".
func SeedRetreats() []model.Listing {
	day := func(m time.Month, d int) model.Date {
		return model.Date{Time: time.Date(2026, m, d, 0, 0, 0, 0, time.UTC)}
	}
	return []model.Listing{
		{ID: 40, Title: "Mountain Detox", Description: "Juice cleanse and hikes.", Date: day(5, 4), Location: "Manali", Price: "540", Type: "Standalone", Condition: "Weight Loss", Duration: 4, Tags: []string{"detox", "hiking"}},
		{ID: 41, Title: "Silent Meditation", Description: "Ten days of silence.", Date: day(5, 11), Location: "Rishikesh", Price: "800", Type: "Signature", Condition: "Mental Wellness", Duration: 10, Tags: []string{"meditation"}},
		{ID: 42, Title: "Lakeside Yoga Week", Description: "Morning flows by the water.", Date: day(6, 1), Location: "Pokhara", Price: "1200.50", Type: "Signature", Condition: "Flexibility", Duration: 7, Tags: []string{"yoga", "lake"}},
		{ID: 43, Title: "Desert Fitness Camp", Description: "Sunrise bootcamp.", Date: day(6, 8), Location: "Jaisalmer", Price: "650", Type: "Standalone", Condition: "Fitness", Duration: 5, Tags: []string{"fitness"}},
		{ID: 44, Title: "Forest Bathing", Description: "Slow walks among cedars.", Date: day(6, 15), Location: "Coorg", Price: "300", Type: "Standalone", Condition: "Stress Management", Duration: 2, Tags: []string{"nature"}},
		{ID: 45, Title: "Ayurveda Reset", Description: "Panchakarma program.", Date: day(6, 22), Location: "Kerala", Price: "1500", Type: "Signature", Condition: "Detox", Duration: 14, Tags: []string{"ayurveda", "detox"}},
		{ID: 46, Title: "Beach Yoga Weekend", Description: "Sunset sessions.", Date: day(7, 3), Location: "Goa", Price: "420", Type: "Standalone", Condition: "Flexibility", Duration: 2, Tags: []string{"yoga", "beach"}},
		{ID: 47, Title: "Breathwork Intensive", Description: "Pranayama deep dive.", Date: day(7, 10), Location: "Dharamshala", Price: "480", Type: "Standalone", Condition: "Mental Wellness", Duration: 3, Tags: []string{"breathwork"}},
		{ID: 48, Title: "Himalayan Yoga Trek", Description: "Asana on the trail.", Date: day(7, 17), Location: "Ladakh", Price: "980", Type: "Signature", Condition: "Fitness", Duration: 8, Tags: []string{"yoga", "trek"}},
		{ID: 49, Title: "Sound Healing", Description: "Singing bowls and rest.", Date: day(7, 24), Location: "Auroville", Price: "260", Type: "Standalone", Condition: "Stress Management", Duration: 2, Tags: []string{"sound"}},
		{ID: 50, Title: "Digital Detox Retreat", Description: "No screens for a week.", Date: day(8, 2), Location: "Munnar", Price: "700", Type: "Standalone", Condition: "Mental Wellness", Duration: 7, Tags: []string{"detox"}},
		{ID: 51, Title: "Wellness Workshop", Description: "Nutrition and sleep classes.", Date: day(8, 9), Location: "Bengaluru", Price: "150", Type: "Standalone", Condition: "General", Duration: 1, Tags: []string{"workshop"}},
	}
}
