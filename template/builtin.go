package template

// Builtin analyzer types shipped with the simulator.
const (
	TypeHematology   = "HEMATOLOGY"
	TypeChemistry    = "CHEMISTRY"
	TypeImmunology   = "IMMUNOLOGY"
	TypeMicrobiology = "MICROBIOLOGY"
)

// builtinTemplates returns fresh copies of the builtin analyzer templates so
// that no two catalogs share template data.
func builtinTemplates() []*Template {
	return []*Template{
		hematologyTemplate(),
		chemistryTemplate(),
		immunologyTemplate(),
		microbiologyTemplate(),
	}
}

func hematologyTemplate() *Template {
	return &Template{
		Analyzer: Analyzer{
			Type:         TypeHematology,
			Name:         "Sysmex XN-1000",
			Manufacturer: "Sysmex",
			Model:        "XN-1000",
		},
		Protocol: Protocol{Type: "ASTM", Version: "LIS2-A2"},
		Identification: Identification{
			ASTMHeader:         "Sysmex^XN-1000^V1.0",
			HL7SendingApp:      "SYSMEX",
			HL7SendingFacility: "HEMATOLOGY",
		},
		Fields: []Field{
			{
				Name:        "WBC",
				DisplayName: "White Blood Cell Count",
				Code:        "WBC",
				Type:        FieldNumeric,
				Unit:        "10*3/uL",
				NormalRange: "4.5-11.0",
				SeedValue:   NumberSeed(6.8),
			},
			{
				Name:        "RBC",
				DisplayName: "Red Blood Cell Count",
				Code:        "RBC",
				Type:        FieldNumeric,
				Unit:        "10*6/uL",
				NormalRange: "4.2-5.9",
				SeedValue:   NumberSeed(4.8),
			},
			{
				Name:        "HGB",
				DisplayName: "Hemoglobin",
				Code:        "HGB",
				Type:        FieldNumeric,
				Unit:        "g/dL",
				NormalRange: "12.0-16.0",
				SeedValue:   NumberSeed(14.2),
			},
			{
				Name:        "HCT",
				DisplayName: "Hematocrit",
				Code:        "HCT",
				Type:        FieldNumeric,
				Unit:        "%",
				NormalRange: "36.0-46.0",
				SeedValue:   NumberSeed(42.1),
			},
			{
				Name:        "PLT",
				DisplayName: "Platelet Count",
				Code:        "PLT",
				Type:        FieldNumeric,
				Unit:        "10*3/uL",
				NormalRange: "150-400",
				SeedValue:   NumberSeed(250),
			},
		},
		TestPatient: Patient{ID: "PAT-TEST-001", Name: "TEST^PATIENT", Sex: "M", DOB: "19900101"},
	}
}

func chemistryTemplate() *Template {
	return &Template{
		Analyzer: Analyzer{
			Type:         TypeChemistry,
			Name:         "Beckman AU5800",
			Manufacturer: "Beckman",
			Model:        "AU5800",
		},
		Protocol: Protocol{Type: "ASTM", Version: "LIS2-A2"},
		Identification: Identification{
			ASTMHeader:         "Beckman^AU5800^V2.1",
			HL7SendingApp:      "BECKMAN",
			HL7SendingFacility: "CHEMISTRY",
		},
		Fields: []Field{
			{
				Name:        "GLUCOSE",
				DisplayName: "Glucose",
				Code:        "GLUCOSE",
				Type:        FieldNumeric,
				Unit:        "mg/dL",
				NormalRange: "70-110",
				SeedValue:   NumberSeed(95),
			},
			{
				Name:        "CREATININE",
				DisplayName: "Creatinine",
				Code:        "CREATININE",
				Type:        FieldNumeric,
				Unit:        "mg/dL",
				NormalRange: "0.7-1.3",
				SeedValue:   NumberSeed(0.9),
			},
			{
				Name:        "BUN",
				DisplayName: "Blood Urea Nitrogen",
				Code:        "BUN",
				Type:        FieldNumeric,
				Unit:        "mg/dL",
				NormalRange: "7-20",
				SeedValue:   NumberSeed(14),
			},
			{
				Name:        "NA",
				DisplayName: "Sodium",
				Code:        "NA",
				Type:        FieldNumeric,
				Unit:        "mmol/L",
				NormalRange: "136-145",
				SeedValue:   NumberSeed(140),
			},
			{
				Name:        "K",
				DisplayName: "Potassium",
				Code:        "K",
				Type:        FieldNumeric,
				Unit:        "mmol/L",
				NormalRange: "3.5-5.1",
				SeedValue:   NumberSeed(4.2),
			},
			{
				Name:        "CL",
				DisplayName: "Chloride",
				Code:        "CL",
				Type:        FieldNumeric,
				Unit:        "mmol/L",
				NormalRange: "98-107",
				SeedValue:   NumberSeed(102),
			},
		},
		TestPatient: Patient{ID: "PAT-TEST-001", Name: "TEST^PATIENT", Sex: "M", DOB: "19900101"},
	}
}

func immunologyTemplate() *Template {
	return &Template{
		Analyzer: Analyzer{
			Type:         TypeImmunology,
			Name:         "Roche Cobas",
			Manufacturer: "Roche",
			Model:        "Cobas",
		},
		Protocol: Protocol{Type: "ASTM", Version: "LIS2-A2"},
		Identification: Identification{
			ASTMHeader:         "Roche^Cobas^V1.5",
			HL7SendingApp:      "ROCHE",
			HL7SendingFacility: "IMMUNOLOGY",
		},
		Fields: []Field{
			{
				Name:        "TSH",
				DisplayName: "Thyroid Stimulating Hormone",
				Code:        "TSH",
				Type:        FieldNumeric,
				Unit:        "uIU/mL",
				NormalRange: "0.4-4.0",
				SeedValue:   NumberSeed(2.1),
			},
			{
				Name:        "FT4",
				DisplayName: "Free Thyroxine",
				Code:        "FT4",
				Type:        FieldNumeric,
				Unit:        "ng/dL",
				NormalRange: "0.8-1.8",
				SeedValue:   NumberSeed(1.2),
			},
			{
				Name:        "CRP",
				DisplayName: "C-Reactive Protein",
				Code:        "CRP",
				Type:        FieldNumeric,
				Unit:        "mg/L",
				NormalRange: "<5",
				SeedValue:   NumberSeed(3.2),
			},
			{
				Name:           "HBSAG",
				DisplayName:    "Hepatitis B Surface Antigen",
				Code:           "HBSAG",
				Type:           FieldQualitative,
				PossibleValues: []string{"NEGATIVE", "POSITIVE"},
				SeedValue:      TextSeed("NEGATIVE"),
			},
			{
				Name:           "AHCV",
				DisplayName:    "Hepatitis C Antibody",
				Code:           "AHCV",
				Type:           FieldQualitative,
				PossibleValues: []string{"NONREACTIVE", "REACTIVE"},
				SeedValue:      TextSeed("NONREACTIVE"),
			},
		},
		TestPatient: Patient{ID: "PAT-TEST-001", Name: "TEST^PATIENT", Sex: "M", DOB: "19900101"},
	}
}

func microbiologyTemplate() *Template {
	return &Template{
		Analyzer: Analyzer{
			Type:         TypeMicrobiology,
			Name:         "BD Phoenix",
			Manufacturer: "BD",
			Model:        "Phoenix",
		},
		Protocol: Protocol{Type: "ASTM", Version: "LIS2-A2"},
		Identification: Identification{
			ASTMHeader:         "BD^Phoenix^V2.0",
			HL7SendingApp:      "BDPHOENIX",
			HL7SendingFacility: "MICROBIOLOGY",
		},
		Fields: []Field{
			{
				Name:        "ORG",
				DisplayName: "Organism Identification",
				Code:        "ORG",
				Type:        FieldText,
				SeedValue:   TextSeed("ESCHERICHIA COLI"),
			},
			{
				Name:           "GRAM",
				DisplayName:    "Gram Stain",
				Code:           "GRAM",
				Type:           FieldQualitative,
				PossibleValues: []string{"NEGATIVE", "POSITIVE"},
				SeedValue:      TextSeed("NEGATIVE"),
			},
			{
				Name:        "COLCT",
				DisplayName: "Colony Count",
				Code:        "COLCT",
				Type:        FieldNumeric,
				Unit:        "CFU/mL",
				NormalRange: ">100000",
				SeedValue:   NumberSeed(150000),
			},
			{
				Name:           "AMP",
				DisplayName:    "Ampicillin",
				Code:           "AMP",
				Type:           FieldQualitative,
				PossibleValues: []string{"SUSCEPTIBLE", "INTERMEDIATE", "RESISTANT"},
				SeedValue:      TextSeed("SUSCEPTIBLE"),
			},
			{
				Name:           "CIP",
				DisplayName:    "Ciprofloxacin",
				Code:           "CIP",
				Type:           FieldQualitative,
				PossibleValues: []string{"SUSCEPTIBLE", "INTERMEDIATE", "RESISTANT"},
				SeedValue:      TextSeed("SUSCEPTIBLE"),
			},
		},
		TestPatient: Patient{ID: "PAT-TEST-001", Name: "TEST^PATIENT", Sex: "M", DOB: "19900101"},
	}
}
