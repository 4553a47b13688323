// Package costs converts monthly usage aggregates into estimated spend.
//
// # Pricing
//
// Each metered service has a static pricing table: a monthly free allotment
// followed by graduated tiers. Pricing.Cost is a pure function of the unit
// count:
//
//	free_units: 1000
//	tiers:
//	  - up_to: 9000      # billable units 1..9000
//	    unit_cost: 0.01
//	  - up_to: 0         # everything above, unbounded
//	    unit_cost: 0.005
//
// 20,000 units cost 9,000 × $0.01 + 10,000 × $0.005 = $140.
//
// # Unknown Services
//
// A service without pricing is estimated at zero with Priced=false, and a
// warning is logged once. Adding a new metered dependency therefore never
// breaks the aggregate report; it shows $0 until priced.
package costs
