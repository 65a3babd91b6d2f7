package extract

const systemPrompt = "You are a specialized financial data extraction AI. You output ONLY valid JSON."

// schemaPrompt precedes the document text in the user message.
const schemaPrompt = `Analyze this financial planning document and extract structured information into the JSON format below.

Output ONLY valid JSON. Do not wrap it in markdown code fences.

REQUIRED JSON STRUCTURE:
{
  "clients": [
    {
      "name": "Full Name",
      "dob": "DD/MM/YYYY or null",
      "age": number or null,
      "occupation": "string or null",
      "employer": "string or null",
      "income": number or null,
      "health_notes": "string or null",
      "marital_status": "string or null"
    }
  ],
  "dependants": [
    {
      "name": "string",
      "age": number or null,
      "school_type": "string or null",
      "notes": "string or null"
    }
  ],
  "assets": {
    "properties": [
      {
        "type": "string",
        "value": number or null,
        "address": "string or null",
        "mortgage_amount": number or null,
        "mortgage_lender": "string or null",
        "mortgage_rate": number or null,
        "mortgage_end_date": "string or null"
      }
    ],
    "pensions": [
      {
        "type": "string",
        "provider": "string or null",
        "value": number or null,
        "contribution_amount": number or null,
        "contribution_frequency": "string or null",
        "owner": "string"
      }
    ],
    "investments": [
      {
        "type": "string",
        "value": number or null,
        "contribution_amount": number or null,
        "allocation": "string or null",
        "owner": "string"
      }
    ]
  },
  "liabilities": [
    {
      "type": "string",
      "amount": number or null,
      "lender": "string or null",
      "rate": number or null
    }
  ],
  "protection": [
    {
      "type": "string",
      "provider": "string or null",
      "cover_amount": number or null,
      "monthly_premium": number or null,
      "status": "string"
    }
  ],
  "goals": {
    "retirement": {
      "target_age": number or null,
      "target_income": number or null,
      "lifestyle_notes": "string or null"
    },
    "education": {
      "target_amount_per_child": number or null,
      "notes": "string or null"
    },
    "other_goals": [
      {
        "description": "string",
        "target_date": "string or null",
        "estimated_cost": number or null
      }
    ]
  },
  "tax_info": {
    "total_household_income": number or null,
    "estimated_iht_liability": number or null,
    "tax_bracket": "string or null"
  },
  "recommendations": [
    {
      "category": "string",
      "priority": "string",
      "description": "string"
    }
  ],
  "adviser": "string or null",
  "document_type": "string"
}

DOCUMENT TEXT:
`

func userPrompt(text string) string {
	return schemaPrompt + text
}
