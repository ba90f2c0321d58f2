// Package interest decides which platform integrations and devices are
// objects of forensic interest.
//
// Operators declare interest with two comma-separated fields, platform and
// device type, whose tokens are drawn from a fixed Vocabulary or are the
// literal "all". ParseSelection validates that input; a Filter normalises it
// and evaluates candidate devices against it.
//
// Evaluation is two-dimensional (platform x device type). Each dimension
// raises a flag and a device is accepted only when every flag is raised, so
// further device-type rules can be added without changing what Accepted means.
//
//	f := interest.NewFilter(interest.DefaultVocabulary())
//	if err := f.Configure(sel.Platforms, sel.DeviceTypes); err != nil {
//	    return err
//	}
//	v := f.Evaluate(dp, dp.OwnerDomains())
//	if v.Accepted {
//	    dp.PlatformName = v.MatchedPlatform
//	}
package interest
